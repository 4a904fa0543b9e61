// Package bot implements the Telegram chat commands.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/language"

	"github.com/stravabot/server/pkg/apperrors"
	"github.com/stravabot/server/pkg/credentials"
	"github.com/stravabot/server/pkg/infrastructure/oauth"
	"github.com/stravabot/server/pkg/infrastructure/telegram"
	"github.com/stravabot/server/pkg/pipeline"
)

var (
	// ErrInvalidState means the OAuth callback carried an unknown or expired state.
	ErrInvalidState = errors.New("invalid or expired state")
	// ErrAuthorizationDenied means the user declined on the Strava page.
	ErrAuthorizationDenied = errors.New("authorization denied")
)

// Accounts manages a chat's Strava connection.
type Accounts interface {
	Connect(ctx context.Context, userID, code string) (*credentials.Record, error)
	Disconnect(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (*credentials.Record, error)
}

// Authorizer builds the Strava authorize link.
type Authorizer interface {
	AuthCodeURL(state string) string
}

// States binds OAuth state values to chats.
type States interface {
	Issue(userID string) string
	Consume(state string) (string, bool)
}

type Runner interface {
	Run(ctx context.Context, userID string) pipeline.Result
}

type Notifier interface {
	Send(ctx context.Context, userID, text string) error
}

type Bot struct {
	accounts   Accounts
	authorizer Authorizer
	states     States
	runner     Runner
	notifier   Notifier
	formatter  *Formatter
	logger     *slog.Logger
}

func New(accounts Accounts, authorizer Authorizer, states States, runner Runner, notifier Notifier, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		accounts:   accounts,
		authorizer: authorizer,
		states:     states,
		runner:     runner,
		notifier:   notifier,
		formatter:  NewFormatter(language.Indonesian),
		logger:     logger,
	}
}

// HandleUpdate answers one webhook update. Updates without a text message
// are ignored. Send failures are logged, not returned: the webhook must
// still acknowledge the update.
func (b *Bot) HandleUpdate(ctx context.Context, update *telegram.Update) {
	if update == nil || update.Message == nil || update.Message.Text == "" {
		return
	}

	msg := update.Message
	userID := msg.ChatID()
	cmd := msg.Command()
	logger := b.logger.With("user_id", userID, "command", cmd)

	var reply string
	switch cmd {
	case "/start", "/connect":
		reply = b.connect(userID)
	case "/status":
		reply = b.status(ctx, logger, userID)
	case "/disconnect":
		reply = b.disconnect(ctx, logger, userID)
	case "/analisis", "/analyze":
		b.reply(ctx, logger, userID, msgAnalyzing)
		reply = b.formatter.FormatResult(b.runner.Run(ctx, userID))
	case "/help":
		reply = msgHelp
	default:
		reply = msgUnknown + "\n\n" + msgHelp
	}

	b.reply(ctx, logger, userID, reply)
}

func (b *Bot) connect(userID string) string {
	state := b.states.Issue(userID)
	return fmt.Sprintf(msgConnectLink, b.authorizer.AuthCodeURL(state))
}

func (b *Bot) status(ctx context.Context, logger *slog.Logger, userID string) string {
	_, err := b.accounts.Status(ctx, userID)
	switch {
	case err == nil:
		return msgStatusOn
	case errors.Is(err, apperrors.ErrNotConnected):
		return msgStatusOff
	default:
		logger.Error("Status lookup failed", "error", err)
		return msgError
	}
}

func (b *Bot) disconnect(ctx context.Context, logger *slog.Logger, userID string) string {
	if err := b.accounts.Disconnect(ctx, userID); err != nil {
		logger.Error("Disconnect failed", "error", err)
		return msgError
	}
	return msgDisconnected
}

func (b *Bot) reply(ctx context.Context, logger *slog.Logger, userID, text string) {
	if err := b.notifier.Send(ctx, userID, text); err != nil {
		logger.Warn("Failed to send reply", "error", err)
	}
}

// CompleteAuthorization handles the OAuth redirect. It returns the chat the
// state was issued to once the credential is stored.
func (b *Bot) CompleteAuthorization(ctx context.Context, state, code, providerErr string) (string, error) {
	userID, ok := b.states.Consume(state)
	if !ok {
		return "", ErrInvalidState
	}
	logger := b.logger.With("user_id", userID)

	if providerErr != "" {
		logger.Info("Strava authorization declined", "error", providerErr)
		b.reply(ctx, logger, userID, msgConnectFailed)
		return userID, fmt.Errorf("%w: %s", ErrAuthorizationDenied, providerErr)
	}

	if _, err := b.accounts.Connect(ctx, userID, code); err != nil {
		logger.Error("Strava connect failed", "error", err)
		if errors.Is(err, oauth.ErrAccountMismatch) {
			b.reply(ctx, logger, userID, msgAccountMismatch)
		} else {
			b.reply(ctx, logger, userID, msgConnectFailed)
		}
		return userID, err
	}

	b.reply(ctx, logger, userID, msgConnected)
	return userID, nil
}
