package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"emperror.dev/errors"
	"github.com/spf13/cobra"

	"github.com/miamanabat/Message-Queue/pkg/mq"
)

// chatCmd is a line-mode chat session
var chatCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra
	Use:   "chat",
	Short: "Interactive line-mode chat",
	Long: `Reads commands from standard input, one per line:

  subscribe TOPIC     receive messages published to TOPIC
  unsubscribe TOPIC   stop receiving messages from TOPIC
  topic TOPIC         publish subsequent lines to TOPIC
  quit | exit         leave

Any other line is published to the current topic.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("topic", "chat", "topic to publish to")
}

func runChat(cmd *cobra.Command, _ []string) error {
	topic, err := cmd.Flags().GetString("topic")
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client, err := newClient()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s connected\n", client.Name())

	recvCtx, stopRecv := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printMessages(recvCtx, client, out)
	}()

	done := make(chan struct{})
	defer close(done)
	lines := readLines(done, cmd.InOrStdin())
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			quit, err := chatCommand(client, &topic, line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				break loop
			}
		}
	}

	err = shutdownClient(context.Background(), client)
	stopRecv()
	wg.Wait()
	return err
}

// chatCommand applies one input line. It reports whether the session should
// end.
func chatCommand(client *mq.Client, topic *string, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}

	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "quit", "exit":
		return true, nil
	case "subscribe":
		return false, client.Subscribe(arg)
	case "unsubscribe":
		return false, client.Unsubscribe(arg)
	case "topic":
		if arg == "" {
			return false, errors.New("usage: topic TOPIC")
		}
		*topic = arg
		return false, nil
	}

	return false, client.Publish(*topic, line)
}

// printMessages writes retrieved messages until ctx is cancelled.
func printMessages(ctx context.Context, client *mq.Client, out io.Writer) {
	for {
		body, err := client.RetrieveContext(ctx)
		switch {
		case err == nil:
			fmt.Fprintln(out, body)
		case errors.Is(err, mq.ErrNoMessage):
			continue
		default:
			return
		}
	}
}

// readLines delivers r line by line until r ends or done is closed.
func readLines(done <-chan struct{}, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}
