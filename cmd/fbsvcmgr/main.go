// Command fbsvcmgr is a minimal client for the engine's Service Manager
// wire sub-protocol: attach to a named service, optionally start it with
// the given switches, and print whatever it reports back.
//
// Exit codes mirror the original utility: 0 success, 1 a connection or
// protocol-level failure, 2 a usage error (bad flags, no such service).
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/fbremote/fbremote/internal/session"
	"github.com/fbremote/fbremote/internal/transport"
	"github.com/fbremote/fbremote/internal/wire"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const (
	exitOK       = 0
	exitConnFail = 1
	exitUsage    = 2
)

// usageError marks a failure as a bad request (unknown action, rejected
// service name) rather than a connection/protocol failure, so realMain can
// pick exit code 2 instead of 1.
type usageError struct{ error }

var (
	host        string
	enginePort  int
	serviceName string
	action      string
)

var rootCmd = &cobra.Command{
	Use:           "fbsvcmgr",
	Short:         "Query and drive the Remote Protocol Engine's service manager",
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVar(&host, "host", "127.0.0.1", "engine host")
	rootCmd.Flags().IntVar(&enginePort, "port", 3050, "engine port")
	rootCmd.Flags().StringVar(&serviceName, "service", "service_mgr", "service name to attach")
	rootCmd.Flags().StringVar(&action, "action", "info", "action to perform: start, info")
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	err := rootCmd.Execute()
	if err == nil {
		return exitOK
	}

	fmt.Fprintln(os.Stderr, err)
	var ue *usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	return exitConnFail
}

func run(cmd *cobra.Command, args []string) error {
	if action != "start" && action != "info" {
		return &usageError{fmt.Errorf("unknown action %q: must be start or info", action)}
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, enginePort), 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s:%d: %w", host, enginePort, err)
	}
	defer conn.Close()

	txPort := transport.NewPort(conn, transport.KindInet)
	sess := session.New(txPort, nil)
	ctx := context.Background()

	attachResp, err := roundTrip(ctx, sess, &wire.Packet{
		Op:      wire.OpServiceAttach,
		Service: &wire.ServicePacket{ServiceName: serviceName},
	})
	if err != nil {
		return fmt.Errorf("service_attach: %w", err)
	}
	if attachResp.Response.Status != nil {
		return &usageError{fmt.Errorf("service_attach rejected: %v", attachResp.Response.Status.Entries)}
	}
	handle := attachResp.Response.ObjectHandle

	if action == "start" {
		resp, err := roundTrip(ctx, sess, &wire.Packet{
			Op:      wire.OpServiceStart,
			Service: &wire.ServicePacket{ServiceHandle: handle},
		})
		if err != nil {
			return fmt.Errorf("service_start: %w", err)
		}
		if resp.Response.Status != nil {
			return fmt.Errorf("service_start failed: %v", resp.Response.Status.Entries)
		}
	}

	infoResp, err := roundTrip(ctx, sess, &wire.Packet{
		Op:      wire.OpServiceInfo,
		Service: &wire.ServicePacket{ServiceHandle: handle},
	})
	if err != nil {
		return fmt.Errorf("service_info: %w", err)
	}

	printServiceInfo(serviceName, handle, infoResp)

	_, _ = roundTrip(ctx, sess, &wire.Packet{
		Op:      wire.OpServiceDetach,
		Service: &wire.ServicePacket{ServiceHandle: handle},
	})
	return nil
}

func roundTrip(ctx context.Context, sess *session.Session, req *wire.Packet) (*wire.Packet, error) {
	if err := sess.SendPacket(req); err != nil {
		return nil, err
	}
	return sess.Receive(ctx)
}

func printServiceInfo(name string, handle int32, resp *wire.Packet) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Service", "Handle", "Status"})
	status := "ok"
	if resp.Response != nil && resp.Response.Status != nil {
		status = "error"
	}
	table.Append([]string{name, fmt.Sprintf("%d", handle), status})
	table.Render()
}
