package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/pendergraft/contraverify/internal/bridge"
	"github.com/pendergraft/contraverify/internal/observability/metrics"
)

// CheckValidation polls the status of the job identified by guid until it leaves the
// queue, the poll limit is hit or ctx is done. Each answer is shown as "{message} {result}".
func (s *Service) CheckValidation(ctx context.Context, apiURL, guid string) (string, error) {
	for attempt := 1; ; attempt++ {
		resp, err := s.api.CheckVerifyStatus(ctx, apiURL, guid)
		if err != nil {
			metrics.VerificationPoll("error")
			s.emit(ctx, bridge.Status{Key: StatusFailed, Type: "error", Title: err.Error()})
			return "", fmt.Errorf("%w: %w", ErrTransport, err)
		}

		text := resp.Message + " " + resp.Result
		s.show(ctx, text)

		switch {
		case resp.Message == StatusMessageNotOK && resp.Result == PendingInQueue:
			metrics.VerificationPoll("pending")
			if attempt >= s.opts.PollMaxAttempts {
				s.emit(ctx, bridge.Status{Key: StatusFailed, Type: "error", Title: resp.Result})
				return resp.Result, fmt.Errorf("%w (%d)", ErrPollLimit, attempt)
			}

			timer := time.NewTimer(s.opts.PollInterval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			s.show(ctx, text+MsgPolling)

		case resp.Message == StatusMessageOK:
			metrics.VerificationPoll("ok")
			s.emit(ctx, bridge.Status{Key: StatusSucceed, Type: "success", Title: resp.Result + " Verified!"})
			return resp.Result, nil

		default:
			metrics.VerificationPoll("failed")
			s.emit(ctx, bridge.Status{Key: StatusFailed, Type: "error", Title: resp.Result})
			return resp.Result, nil
		}
	}
}
