package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"operatorMonitor/internal/model"
)

// SlackConfig configures the Slack channel.
type SlackConfig struct {
	Token   string
	Channel string
	// RatePerSecond limits chat.postMessage calls; 0 disables the limit.
	RatePerSecond float64
	// APIURL overrides the Slack API endpoint.
	APIURL string
}

// Slack posts messages through the Slack Web API.
type Slack struct {
	client  *slack.Client
	channel string
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewSlack(cfg SlackConfig, logger *zap.Logger) (*Slack, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("slack token is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("slack channel is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	s := &Slack{
		client:  slack.New(cfg.Token, opts...),
		channel: cfg.Channel,
		limiter: limiter,
		logger:  logger.Named("slack"),
	}
	s.logger.Info("slack notifier initialized", zap.String("channel", cfg.Channel))
	return s, nil
}

func (s *Slack) Name() string { return "Slack" }

func (s *Slack) Send(ctx context.Context, message string, _ *model.ChainEvent) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	_, ts, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(message, false),
		slack.MsgOptionDisableLinkUnfurl(),
		slack.MsgOptionDisableMediaUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}

	s.logger.Debug("slack message sent", zap.String("ts", ts))
	return nil
}

// TestConnection verifies the token without posting to the channel.
func (s *Slack) TestConnection(ctx context.Context) error {
	resp, err := s.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("auth test: %w", err)
	}
	s.logger.Info("slack auth ok", zap.String("team", resp.Team), zap.String("user", resp.User))
	return nil
}
