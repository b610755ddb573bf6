package Slack

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"Anvil/Models"
	"Anvil/Tasks"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Required Bot Token Scopes:
// - chat:write (send messages)
// - pins:write (pin/unpin messages)

// Notifier posts task completions and daily digests to one channel.
type Notifier struct {
	client  *slack.Client
	channel string
	logger  *zap.Logger

	mu         sync.Mutex
	lastDigest string
	lastTS     string
}

// NewNotifier creates a notifier. Extra options are passed to the Slack
// client, e.g. slack.OptionAPIURL in tests.
func NewNotifier(token, channel string, logger *zap.Logger, options ...slack.Option) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		client:  slack.New(token, options...),
		channel: channel,
		logger:  logger,
	}
}

// CompletionMessage is the text posted when a task is marked done.
func CompletionMessage(task Models.TaskRecord, ack Tasks.Ack, caller Models.RoleContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Task *%s* completed", getStatusEmoji(ack.Status), task.TaskNo)
	if task.MachineName != "" {
		fmt.Fprintf(&b, " on *%s*", task.MachineName)
	}
	if task.SerialNo != "" {
		fmt.Fprintf(&b, " (%s)", task.SerialNo)
	}
	fmt.Fprintf(&b, " by %s", caller.Username)
	if ack.ActualDate != "" {
		fmt.Fprintf(&b, " on %s", ack.ActualDate)
	}
	if ack.FileURL != "" {
		fmt.Fprintf(&b, "\n📎 <%s|attachment>", ack.FileURL)
	}
	return b.String()
}

// TaskCompleted posts a completion message.
func (n *Notifier) TaskCompleted(ctx context.Context, task Models.TaskRecord, ack Tasks.Ack, caller Models.RoleContext) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(CompletionMessage(task, ack, caller), false))
	if err != nil {
		return fmt.Errorf("error sending completion message: %w", err)
	}
	return nil
}

// PostDigest sends the digest and pins it in place of the previous one.
// A digest whose content matches the last one, ignoring timestamp lines,
// is not resent.
func (n *Notifier) PostDigest(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.lastDigest != "" && messagesAreEqual(n.lastDigest, message) {
		n.logger.Info("Digest unchanged, skipping", zap.String("channel", n.channel))
		return nil
	}

	if n.lastTS != "" {
		if err := n.client.RemovePinContext(ctx, n.channel, slack.NewRefToMessage(n.channel, n.lastTS)); err != nil {
			n.logger.Warn("Could not unpin previous digest", zap.String("ts", n.lastTS), zap.Error(err))
		}
	}

	_, ts, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(message, false))
	if err != nil {
		return fmt.Errorf("error sending digest: %w", err)
	}
	n.lastDigest = message
	n.lastTS = ts

	if err := n.client.AddPinContext(ctx, n.channel, slack.NewRefToMessage(n.channel, ts)); err != nil {
		n.logger.Warn("Digest sent but pinning failed", zap.String("ts", ts), zap.Error(err))
	}
	return nil
}

// messagesAreEqual compares two messages, ignoring timestamp differences
func messagesAreEqual(oldMessage, newMessage string) bool {
	return removeTimestampLines(oldMessage) == removeTimestampLines(newMessage)
}

func removeTimestampLines(message string) string {
	lines := strings.Split(message, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "_Generated") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func getStatusEmoji(status string) string {
	switch status {
	case Models.StatusYes:
		return "✅"
	case Models.StatusNo:
		return "⏳"
	default:
		return "❓"
	}
}
