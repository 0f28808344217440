// ptrc is a CLI tool for capturing and inspecting ptrc sessions.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/oklog/run"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
)

func main() {
	var (
		ctx    = context.Background()
		stdin  = os.Stdin
		stdout = os.Stdout
		stderr = os.Stderr
		args   = os.Args[1:]
	)
	err := exec(ctx, stdin, stdout, stderr, args)
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.As(err, &(run.SignalError{})):
		os.Exit(0)
	case err != nil:
		fmt.Fprintf(stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func exec(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) (err error) {
	rootConfig := &rootConfig{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	rootFlags := ff.NewFlagSet("ptrc")
	rootConfig.registerBaseFlags(rootFlags)

	rootCommand := &ff.Command{
		Name:      "ptrc",
		ShortHelp: "capture and inspect performance traces",
		Flags:     rootFlags,
	}

	captureFlags := ff.NewFlagSet("capture").SetParent(rootFlags)
	rootConfig.registerCaptureFlags(captureFlags)

	remoteFlags := ff.NewFlagSet("remote").SetParent(rootFlags)
	rootConfig.registerRemoteFlags(remoteFlags)

	// Config for `ptrc demo`.
	demoConfig := &demoConfig{rootConfig: rootConfig}
	demoFlags := ff.NewFlagSet("demo").SetParent(captureFlags)
	demoConfig.register(demoFlags)
	demoCommand := &ff.Command{
		Name:      "demo",
		ShortHelp: "capture a synthetic workload and export the session",
		LongHelp:  "Run a concurrent workload in-process, and write the captured session to a file, stdout, or the clipboard.",
		Flags:     demoFlags,
		Exec:      demoConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, demoCommand)

	// Config for `ptrc serve`.
	serveConfig := &serveConfig{rootConfig: rootConfig}
	serveFlags := ff.NewFlagSet("serve").SetParent(captureFlags)
	serveConfig.register(serveFlags)
	serveCommand := &ff.Command{
		Name:      "serve",
		ShortHelp: "run an instrumented HTTP server with a session control API",
		Flags:     serveFlags,
		Exec:      serveConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, serveCommand)

	// Config for `ptrc start`.
	startConfig := &startConfig{rootConfig: rootConfig}
	startFlags := ff.NewFlagSet("start").SetParent(remoteFlags)
	rootConfig.registerCaptureFlags(startFlags)
	startCommand := &ff.Command{
		Name:      "start",
		ShortHelp: "start a session on a remote server",
		Flags:     startFlags,
		Exec:      startConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, startCommand)

	// Config for `ptrc stop`.
	stopConfig := &stopConfig{rootConfig: rootConfig}
	stopFlags := ff.NewFlagSet("stop").SetParent(remoteFlags)
	stopCommand := &ff.Command{
		Name:      "stop",
		ShortHelp: "stop the session on a remote server, discarding its data",
		Flags:     stopFlags,
		Exec:      stopConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, stopCommand)

	// Config for `ptrc fetch`.
	fetchConfig := &fetchConfig{rootConfig: rootConfig}
	fetchFlags := ff.NewFlagSet("fetch").SetParent(remoteFlags)
	fetchConfig.register(fetchFlags)
	fetchCommand := &ff.Command{
		Name:      "fetch",
		ShortHelp: "fetch the session from a remote server",
		LongHelp:  "Write the serialized session to a file or stdout, or print a summary.",
		Flags:     fetchFlags,
		Exec:      fetchConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, fetchCommand)

	// Config for `ptrc stream`.
	streamConfig := &streamConfig{rootConfig: rootConfig}
	streamFlags := ff.NewFlagSet("stream").SetParent(remoteFlags)
	streamConfig.register(streamFlags)
	streamCommand := &ff.Command{
		Name:      "stream",
		ShortHelp: "continuously stream events from a remote server to the terminal",
		Flags:     streamFlags,
		Exec:      streamConfig.Exec,
	}
	rootCommand.Subcommands = append(rootCommand.Subcommands, streamCommand)

	// Print help when appropriate.
	showHelp := true
	defer func() {
		errHelp := errors.Is(err, ff.ErrHelp) || errors.Is(err, ff.ErrNoExec)
		if showHelp || errHelp {
			fmt.Fprintf(stderr, "\n%s\n", ffhelp.Command(rootCommand))
		}
		if errHelp {
			err = nil
		}
	}()

	// Initial parsing.
	if err := rootCommand.Parse(args, ff.WithEnvVarPrefix("PTRC")); err != nil {
		return err
	}

	// Validation and set-up.
	{
		var infodst, debugdst io.Writer
		switch rootConfig.logLevel {
		case "n", "none":
			infodst, debugdst = io.Discard, io.Discard
		case "i", "info":
			infodst, debugdst = stderr, io.Discard
		case "d", "debug":
			infodst, debugdst = stderr, stderr
		default:
			return fmt.Errorf("invalid log level %q", rootConfig.logLevel)
		}
		rootConfig.info = log.New(infodst, "", 0)
		rootConfig.debug = log.New(debugdst, "[DEBUG] ", log.Lmsgprefix)
	}

	// Run errors shouldn't show help by default.
	showHelp = false

	// Run the selected command.
	return rootCommand.Run(ctx)
}
