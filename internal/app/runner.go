package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prperemyshlev/datahub-healthcheck/internal/client"
	"github.com/prperemyshlev/datahub-healthcheck/internal/config"
	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"github.com/prperemyshlev/datahub-healthcheck/internal/fixture"
	"github.com/prperemyshlev/datahub-healthcheck/internal/service"
	"github.com/prperemyshlev/datahub-healthcheck/internal/utils"
	"github.com/prperemyshlev/datahub-healthcheck/internal/waiter"
	"go.uber.org/zap"
)

// tokenExpiryWarning is how close to expiry the identity token may get before
// every run warns about it
const tokenExpiryWarning = 24 * time.Hour

// newRunnerFactory reads the identity and the fixture on every run so that a
// refreshed credentials file is picked up without a restart.
func newRunnerFactory(cfg *config.Config, c *client.Client, observer service.RecordObserver, clock waiter.Clock, logger *zap.Logger) service.RunnerFactory {
	flowManager := client.NewFlowManager(c, cfg.FlowManager.Prefix)
	auth := client.NewAuth(c, cfg.Auth.Prefix)

	policy := waiter.Policy{
		Minimum:  cfg.FlowManager.ProcessingWait.Duration,
		Timeout:  cfg.FlowManager.PollTimeout.Duration,
		Interval: cfg.FlowManager.PollInterval.Duration,
	}

	return func(ctx context.Context) (*service.Runner, error) {
		identity, err := config.LoadIdentity(cfg.UserInfo)
		if err != nil {
			return nil, err
		}
		warnOnExpiry(identity.Token, logger)
		if fields := config.UnusualProfileFields(identity); len(fields) > 0 {
			logger.Warn("Identity profile looks unusual, checks may fail", zap.Strings("fields", fields))
		}

		content, err := fixture.Load(cfg.FixturePath, fixtureParams(cfg, identity))
		if err != nil {
			return nil, err
		}

		runner, err := service.NewRunner(service.RunnerOptions{
			Identity:    identity,
			FlowManager: flowManager,
			Auth:        auth,
			Content:     content,
			DatasetID:   cfg.FlowManager.DatasetID,
			Clock:       clock,
			Wait:        policy,
			Logger:      logger,
			Observer:    observer,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create runner: %w", err)
		}
		return runner, nil
	}
}

func fixtureParams(cfg *config.Config, identity domain.Identity) fixture.Params {
	return fixture.Params{
		Prefix:    cfg.FlowManager.Prefix,
		Owner:     identity.Username,
		OwnerID:   identity.OwnerID,
		DatasetID: cfg.FlowManager.DatasetID,
		Revision:  service.RevisionLatest,
	}
}

func warnOnExpiry(token string, logger *zap.Logger) {
	claims, err := utils.InspectToken(token)
	if err != nil {
		logger.Warn("Identity token is not a readable JWT", zap.Error(err))
		return
	}

	switch {
	case claims.IsExpired():
		logger.Warn("Identity token has expired, auth checks will fail", zap.String("user_id", claims.UserID))
	case claims.Exp != 0 && claims.ExpiresIn() < tokenExpiryWarning:
		logger.Warn("Identity token expires soon", zap.Duration("expires_in", claims.ExpiresIn()))
	}
}
