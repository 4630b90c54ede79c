package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prperemyshlev/datahub-healthcheck/internal/assertion"
	"github.com/prperemyshlev/datahub-healthcheck/internal/client"
	"github.com/prperemyshlev/datahub-healthcheck/internal/domain"
	"github.com/prperemyshlev/datahub-healthcheck/internal/fixture"
	"github.com/prperemyshlev/datahub-healthcheck/internal/utils"
	"github.com/prperemyshlev/datahub-healthcheck/internal/waiter"
	"go.uber.org/zap"
)

// Flow manager error messages
const (
	MsgEmptyContents     = "Received empty contents (make sure your content-type is correct)"
	MsgMissingOwner      = "Missing owner in spec"
	MsgNotAuthorised     = "No token or token not authorised for owner"
	MsgPlanLimitExceeded = "Max datasets for user exceeded plan limit (2)"
	MsgUnsupportedInput  = "Unexpected error: Only supporting datapackage inputs atm"
	MsgBadTimeUnit       = "Bad time unit for schedule, only s/m/h/d/w are allowed"
	MsgScheduleTooShort  = "Can't schedule tasks for less than one minute"
)

// Revision aliases and states
const (
	RevisionLatest     = "latest"
	RevisionSuccessful = "successful"
	StateSucceeded     = "SUCCEEDED"
	StateFailed        = "FAILED"
)

const (
	sourceService      = "source"
	nonExistingOwnerID = "non-existing-owner"
	overQuotaDataset   = "new-basic-csv"
)

var errRevisionUnknown = errors.New("revision unavailable from an earlier step")

// rejectedUpload is one upload that the flow manager must refuse
type rejectedUpload struct {
	label   string
	content func() (fixture.Content, error)
	auth    bool
	message string
}

// CheckFlowManager validates upload validation, quota enforcement and revision processing
func (r *Runner) CheckFlowManager(ctx context.Context) error {
	const group = domain.GroupFlowManager

	r.uploadWithoutContent(ctx)

	for _, u := range r.rejectedUploads() {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.uploadRejected(ctx, u)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	baseline, baselineErr := r.revision(ctx, RevisionLatest, "Latest revision: status 200")

	r.uploadValid(ctx)

	r.logger.Info("Waiting for revision processing",
		zap.Duration("minimum", r.wait.Minimum),
		zap.Duration("poll_timeout", r.wait.Timeout),
	)
	err := waiter.WaitFor(ctx, r.clock, r.wait, r.processed(baseline, baselineErr))
	if err != nil && !errors.Is(err, waiter.ErrTimeout) {
		return err
	}
	if err != nil {
		r.logger.Warn("Revision not processed before poll timeout", zap.Error(err))
	}

	latest, latestErr := r.checkLatestProcessed(ctx, baseline, baselineErr)

	successful, successfulErr := r.checkSuccessfulMatches(ctx, latest, latestErr)

	numbered, numberedErr := r.checkRevisionNumber(ctx, successful, successfulErr)

	if numberedErr != nil {
		r.record(ctx, group, assertion.Failed("Get invalid revision number: status 404", numberedErr))
	} else {
		r.expectStatus(ctx, strconv.Itoa(numbered+1), "Get invalid revision number: status 404", http.StatusNotFound)
	}

	r.expectStatus(ctx, "invalid", "Get invalid revision word: status 404", http.StatusNotFound)

	return ctx.Err()
}

func (r *Runner) rejectedUploads() []rejectedUpload {
	valid := func() (fixture.Content, error) { return r.content.Clone(), nil }

	return []rejectedUpload{
		{
			label:   "Upload without owner",
			content: func() (fixture.Content, error) { return fixture.Content{}, nil },
			message: MsgMissingOwner,
		},
		{
			label: "Upload with invalid owner",
			content: func() (fixture.Content, error) {
				return fixture.Content{"meta": map[string]any{"ownerid": nonExistingOwnerID}}, nil
			},
			message: MsgNotAuthorised,
		},
		{
			label:   "Upload with no JWT",
			content: valid,
			message: MsgNotAuthorised,
		},
		{
			label:   "Upload exceeding limits",
			content: func() (fixture.Content, error) { return r.content.WithDataset(overQuotaDataset), nil },
			auth:    true,
			message: MsgPlanLimitExceeded,
		},
		{
			label:   "Upload with invalid input",
			content: func() (fixture.Content, error) { return r.content.WithInputKind("invalid") },
			auth:    true,
			message: MsgUnsupportedInput,
		},
		{
			label:   "Upload with invalid schedule unit",
			content: func() (fixture.Content, error) { return r.content.WithSchedule("every 1k"), nil },
			auth:    true,
			message: MsgBadTimeUnit,
		},
		{
			label:   "Upload with invalid schedule time",
			content: func() (fixture.Content, error) { return r.content.WithSchedule("every 1s"), nil },
			auth:    true,
			message: MsgScheduleTooShort,
		},
	}
}

func rejectionNames(label string) (status, success, message string) {
	return label + ": status 200", label + ": success is false", label + ": error message is correct"
}

func (r *Runner) uploadWithoutContent(ctx context.Context) {
	const label = "Upload without content"
	resp, err := r.flowManager.UploadEmpty(ctx)
	r.expectRejection(ctx, label, resp, err, MsgEmptyContents)
}

func (r *Runner) uploadRejected(ctx context.Context, u rejectedUpload) {
	content, err := u.content()
	if err != nil {
		r.expectRejection(ctx, u.label, nil, fmt.Errorf("failed to build payload: %w", err), u.message)
		return
	}

	var token string
	if u.auth {
		token, err = r.tokens.Token(ctx, sourceService)
		if err != nil {
			r.expectRejection(ctx, u.label, nil, err, u.message)
			return
		}
	}

	resp, err := r.flowManager.Upload(ctx, content, token)
	r.expectRejection(ctx, u.label, resp, err, u.message)
}

// expectRejection records status 200, success false and the expected first error
func (r *Runner) expectRejection(ctx context.Context, label string, resp *client.Response, err error, message string) {
	const group = domain.GroupFlowManager
	statusName, successName, messageName := rejectionNames(label)

	if err != nil {
		r.failAll(ctx, group, err, statusName, successName, messageName)
		return
	}

	r.record(ctx, group, assertion.Status(statusName, resp.StatusCode, http.StatusOK))
	r.bodyChecks(ctx, group, resp,
		expectField(successName, "success", false),
		expectMessage(messageName, "errors", message),
	)
}

func (r *Runner) uploadValid(ctx context.Context) {
	const group = domain.GroupFlowManager
	statusName, successName := "Upload valid data: status 200", "Upload valid data: success is true"

	token, err := r.tokens.Token(ctx, sourceService)
	if err != nil {
		r.failAll(ctx, group, err, statusName, successName)
		return
	}

	resp, err := r.flowManager.Upload(ctx, r.content.Clone(), token)
	if err != nil {
		r.failAll(ctx, group, err, statusName, successName)
		return
	}

	r.record(ctx, group, assertion.Status(statusName, resp.StatusCode, http.StatusOK))
	r.bodyChecks(ctx, group, resp, expectField(successName, "success", true))
}

// revision fetches a revision and records its status check when statusName is set
func (r *Runner) revision(ctx context.Context, revision, statusName string) (int, error) {
	resp, err := r.flowManager.Revision(ctx, r.identity.OwnerID, r.datasetID, revision)
	if err != nil {
		if statusName != "" {
			r.record(ctx, domain.GroupFlowManager, assertion.Failed(statusName, err))
		}
		return 0, err
	}

	if statusName != "" {
		r.record(ctx, domain.GroupFlowManager, assertion.Status(statusName, resp.StatusCode, http.StatusOK))
	}

	return revisionOf(resp)
}

func revisionOf(resp *client.Response) (int, error) {
	if _, err := resp.JSON(); err != nil {
		return 0, err
	}
	id := resp.String("id")
	n, ok := utils.RevisionNumber(id)
	if !ok {
		return 0, fmt.Errorf("no numeric revision in id %q (status %d)", id, resp.StatusCode)
	}
	return n, nil
}

// processed reports readiness once latest is newer than the baseline and in a final state
func (r *Runner) processed(baseline int, baselineErr error) waiter.Condition {
	return func(ctx context.Context) (bool, error) {
		resp, err := r.flowManager.Revision(ctx, r.identity.OwnerID, r.datasetID, RevisionLatest)
		if err != nil {
			return false, err
		}
		n, err := revisionOf(resp)
		if err != nil {
			return false, err
		}
		if baselineErr == nil && n <= baseline {
			return false, fmt.Errorf("latest revision is still %d", n)
		}
		state := resp.String("state")
		if state != StateSucceeded && state != StateFailed {
			return false, fmt.Errorf("revision %d is %s", n, state)
		}
		return true, nil
	}
}

func (r *Runner) checkLatestProcessed(ctx context.Context, baseline int, baselineErr error) (int, error) {
	const (
		group         = domain.GroupFlowManager
		processedName = "New revision processed"
		succeededName = "New revision succeeded"
	)

	resp, err := r.flowManager.Revision(ctx, r.identity.OwnerID, r.datasetID, RevisionLatest)
	if err != nil {
		r.failAll(ctx, group, err, processedName, succeededName)
		return 0, err
	}

	latest, latestErr := revisionOf(resp)
	switch {
	case latestErr != nil:
		r.record(ctx, group, assertion.Failed(processedName, latestErr))
	case baselineErr != nil:
		r.record(ctx, group, assertion.Failed(processedName, fmt.Errorf("baseline %w: %w", errRevisionUnknown, baselineErr)))
	default:
		r.record(ctx, group, assertion.Numbers(processedName, baseline, latest, assertion.LessThan))
	}

	r.bodyChecks(ctx, group, resp, expectField(succeededName, "state", StateSucceeded))

	return latest, latestErr
}

func (r *Runner) checkSuccessfulMatches(ctx context.Context, latest int, latestErr error) (int, error) {
	const (
		group      = domain.GroupFlowManager
		statusName = "Successful revision: status 200"
		matchName  = "Successful and latest revision match"
	)

	successful, err := r.revision(ctx, RevisionSuccessful, statusName)
	switch {
	case err != nil:
		r.record(ctx, group, assertion.Failed(matchName, err))
	case latestErr != nil:
		r.record(ctx, group, assertion.Failed(matchName, fmt.Errorf("latest %w: %w", errRevisionUnknown, latestErr)))
	default:
		r.record(ctx, group, assertion.Numbers(matchName, latest, successful, assertion.Equal))
	}

	return successful, err
}

func (r *Runner) checkRevisionNumber(ctx context.Context, successful int, successfulErr error) (int, error) {
	const name = "Able to get with revision number"

	if successfulErr != nil {
		err := fmt.Errorf("successful %w: %w", errRevisionUnknown, successfulErr)
		r.record(ctx, domain.GroupFlowManager, assertion.Failed(name, err))
		return 0, err
	}

	n, err := r.revision(ctx, strconv.Itoa(successful), name)
	if err != nil {
		// the lookup itself was recorded; fall back to the number we asked for
		return successful, nil
	}
	return n, nil
}

func (r *Runner) expectStatus(ctx context.Context, revision, name string, status int) {
	resp, err := r.flowManager.Revision(ctx, r.identity.OwnerID, r.datasetID, revision)
	if err != nil {
		r.record(ctx, domain.GroupFlowManager, assertion.Failed(name, err))
		return
	}
	r.record(ctx, domain.GroupFlowManager, assertion.Status(name, resp.StatusCode, status))
}
