package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nickyhof/storeadapter/client"
	"github.com/nickyhof/storeadapter/server"
	"github.com/nickyhof/storeadapter/store"
)

func TestServeUntilCancelled(t *testing.T) {
	config, err := server.LoadConfig("")
	require.NoError(t, err)
	config.Addr = "127.0.0.1:0"
	config.Perspectives = []server.PerspectiveConfig{{Name: "shop", Tables: []string{"items"}}}

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, config, zaptest.NewLogger(t), ready)
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	session, err := client.NewDriver().Open("tcp://"+addr, store.Credentials{})
	require.NoError(t, err)
	_, err = session.Perspective("shop")
	require.NoError(t, err)
	_, err = session.Perspective("other")
	assert.ErrorIs(t, err, store.ErrUnknownPerspective)
	require.NoError(t, session.Close())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--addr", ":4000", "--base-dir", "/tmp/store"}))

	addr, err := cmd.Flags().GetString("addr")
	require.NoError(t, err)
	assert.Equal(t, ":4000", addr)
	assert.Equal(t, Version, cmd.Version)
}
