package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/joshp123/gohome-switchbot/internal/core"
)

func TestRegisterPluginsAddsRegistry(t *testing.T) {
	server := grpc.NewServer()
	require.NoError(t, RegisterPlugins(server, []core.Plugin{}))

	info := server.GetServiceInfo()
	assert.Contains(t, info, core.RegistryPackage+"."+core.RegistryName)
	assert.Len(t, info[core.RegistryPackage+"."+core.RegistryName].Methods, 2)
}
