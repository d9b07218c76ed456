// Package main runs a standalone NATS server with JetStream for manual
// election testing.
//
// It starts a local server, pre-creates the "elections" KV bucket, and prints
// the connection URL so examples and ad-hoc electors can be pointed at it:
//
//	go run ./test/cmd/nats-server &
//	NATS_URL=nats://127.0.0.1:<port> go run ./examples/nats
//
// The server stores JetStream data in a temporary directory that is removed
// on shutdown.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/objelect/objelect/natsstore"
)

func main() {
	// Obtain a free port via net.Listen, then hand it to the server.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatal("Failed to get available port:", err)
	}

	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		log.Fatal("Failed to get TCP address from listener")
	}
	port := tcpAddr.Port

	// Small race window between Close and server bind, acceptable for a dev tool.
	_ = listener.Close()

	tempDir := filepath.Join(os.TempDir(), fmt.Sprintf("objelect-nats-%d", os.Getpid()))
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		log.Fatal("Failed to create temp directory:", err)
	}
	defer func() {
		_ = os.RemoveAll(tempDir)
	}()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      port,
		JetStream: true,
		StoreDir:  tempDir,
		NoLog:     true,
		NoSigs:    true, // We handle signals ourselves
	}

	srv, err := server.NewServer(opts)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to create NATS server: %v\n", err)
		os.Exit(1) //nolint:gocritic // OS will clean up temp directory on process exit
	}

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		_, _ = fmt.Fprintln(os.Stderr, "NATS server not ready within timeout")
		os.Exit(1)
	}

	url := fmt.Sprintf("nats://%s:%d", opts.Host, opts.Port)

	// Pre-create the election bucket so electors can connect immediately.
	if err := createElectionBucket(url); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to create election bucket: %v\n", err)
		os.Exit(1)
	}

	// Connection info on stdout for scripts and parent processes.
	fmt.Printf("NATS_URL=%s\n", url)
	fmt.Println("NATS_READY=true")
	_, _ = fmt.Fprintf(os.Stderr, "NATS server started on port %d (PID: %d), bucket %q ready\n",
		port, os.Getpid(), "elections")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	_, _ = fmt.Fprintln(os.Stderr, "Shutting down NATS server...")

	srv.Shutdown()
	srv.WaitForShutdown()

	_, _ = fmt.Fprintln(os.Stderr, "NATS server stopped")
}

// createElectionBucket connects briefly to create the "elections" KV bucket.
func createElectionBucket(url string) error {
	nc, err := nats.Connect(url, nats.Timeout(2*time.Second))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := natsstore.OpenBucket(ctx, js, "elections"); err != nil {
		return err
	}

	return nil
}
