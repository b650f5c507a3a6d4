package cli

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/idanmel/skyarena/internal/dependencies/random"
	"github.com/idanmel/skyarena/internal/protocol"
)

func newFlyCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "fly <aircraft>",
		Short: "Enter the open world with an aircraft",
		Long: `fly logs in, selects the given aircraft, and binds this machine's UDP
address to the session's world token. With --watch it prints one world
broadcast before exiting back to the select window.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := loggedInClient()
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			token := random.New().Token(16)
			ok, err := client.Select(args[0], token)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("selection of %s rejected: not in your hangar", args[0])
			}
			fmt.Printf("entered open world as %s (token %s)\n", args[0], token)

			if err := bindAndWatch(token, watch); err != nil {
				return err
			}

			return client.ExitToSelect()
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Print one world broadcast after binding")
	return cmd
}

// bindAndWatch registers this machine's UDP address for the token and
// optionally waits for a single broadcast.
func bindAndWatch(token string, watch bool) error {
	conn, err := net.Dial("udp", cfg.WorldAddr)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write([]byte(protocol.TagAddrRegister + "#" + token)); err != nil {
		return err
	}

	buf := make([]byte, 2048)
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("no address confirmation from server: %w", err)
	}
	if string(buf[:n]) != protocol.TagAddrConfirm {
		return fmt.Errorf("unexpected world answer %q", buf[:n])
	}
	fmt.Println("address bound")

	if !watch {
		return nil
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	n, err = conn.Read(buf)
	if err != nil {
		return fmt.Errorf("no broadcast received: %w", err)
	}

	tag, body, _ := strings.Cut(string(buf[:n]), "#")
	if tag != protocol.TagPosBroadcast {
		return fmt.Errorf("unexpected world answer %q", buf[:n])
	}
	for _, segment := range strings.Split(body, "$") {
		fmt.Println(segment)
	}
	return nil
}
