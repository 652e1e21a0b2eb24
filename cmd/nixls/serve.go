package main

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/nixls/nixls/lsp"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the language server on stdin and stdout",
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	e, err := newEnv(ctx, cmd)
	if err != nil {
		return err
	}

	defer func() {
		_ = e.logger.Sync()
	}()

	e.logger.Info("Starting nixls server",
		zap.String("version", version),
		zap.Int("docSources", len(e.cfg.Docs)))

	return serve(ctx, e, os.Stdin, os.Stdout)
}

func serve(ctx context.Context, e *env, in io.Reader, out io.Writer) error {
	// Create a JSON-RPC stream connection over stdio
	stream := jsonrpc2.NewStream(&readWriteCloser{in, out})
	conn := jsonrpc2.NewConn(stream)

	// Create a client to send notifications to the editor
	client := protocol.ClientDispatcher(conn, e.logger)

	server := lsp.NewServer(client, e.logger,
		lsp.WithRegistry(e.registry),
		lsp.WithBuiltins(e.builtins),
		lsp.WithDocs(e.docs),
	)

	conn.Go(ctx, protocol.ServerHandler(server, nil))

	// Wait for the connection to close
	<-conn.Done()

	return conn.Err()
}

// readWriteCloser wraps separate reader/writer into io.ReadWriteCloser.
type readWriteCloser struct {
	io.Reader
	io.Writer
}

func (rwc *readWriteCloser) Close() error {
	if c, ok := rwc.Writer.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
