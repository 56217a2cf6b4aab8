package retry_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/synctest"
	"time"

	"ytbatch/internal/entity"
	"ytbatch/internal/errs"
	"ytbatch/internal/retry"
)

// script returns an Operation that replays outcomes in order and counts calls.
func script(outcomes ...entity.Outcome) (retry.Operation, *int) {
	calls := 0

	return func(context.Context) entity.Outcome {
		out := outcomes[min(calls, len(outcomes)-1)]
		calls++

		return out
	}, &calls
}

func TestDo(t *testing.T) {
	transient := func(n int) entity.Outcome {
		return entity.Failure(entity.FailureTransient, fmt.Errorf("attempt %d: %w", n, errs.ErrDownloadFailed))
	}

	errInvalid := fmt.Errorf("%w: %q", errs.ErrInvalidURL, "not a url")

	tests := []struct {
		name        string
		outcomes    []entity.Outcome
		maxRetries  int
		wantPath    string
		wantErr     error
		wantErrText string
		wantCalls   int
		wantElapsed time.Duration
		wantNotify  []int
	}{
		{
			name:        "succeeds on third attempt",
			outcomes:    []entity.Outcome{transient(1), transient(2), entity.Success("/out/a.mp3")},
			maxRetries:  3,
			wantPath:    "/out/a.mp3",
			wantCalls:   3,
			wantElapsed: 10 * time.Second,
			wantNotify:  []int{1, 2},
		},
		{
			name:        "returns the last cause after exhausting attempts",
			outcomes:    []entity.Outcome{transient(1), transient(2), transient(3)},
			maxRetries:  3,
			wantErr:     errs.ErrDownloadFailed,
			wantErrText: "attempt 3",
			wantCalls:   3,
			wantElapsed: 10 * time.Second,
			wantNotify:  []int{1, 2},
		},
		{
			name:       "validation failure is not retried",
			outcomes:   []entity.Outcome{entity.Failure(entity.FailureValidation, errInvalid)},
			maxRetries: 3,
			wantErr:    errInvalid,
			wantCalls:  1,
		},
		{
			name:        "empty path is a failure",
			outcomes:    []entity.Outcome{entity.Success("")},
			maxRetries:  2,
			wantErr:     errs.ErrNoOutput,
			wantCalls:   2,
			wantElapsed: 5 * time.Second,
			wantNotify:  []int{1},
		},
		{
			name:        "empty path then success",
			outcomes:    []entity.Outcome{entity.Success(""), entity.Success("/out/b.mp4")},
			maxRetries:  3,
			wantPath:    "/out/b.mp4",
			wantCalls:   2,
			wantElapsed: 5 * time.Second,
			wantNotify:  []int{1},
		},
		{
			name:       "single attempt never waits",
			outcomes:   []entity.Outcome{transient(1)},
			maxRetries: 1,
			wantErr:    errs.ErrDownloadFailed,
			wantCalls:  1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			synctest.Test(t, func(t *testing.T) {
				op, calls := script(tc.outcomes...)

				var notified []int

				start := time.Now()

				path, err := retry.Do(t.Context(), op, retry.Policy{
					MaxRetries: tc.maxRetries,
					Delay:      5 * time.Second,
					Notify: func(attempt int, cause error, wait time.Duration) {
						if cause == nil {
							t.Errorf("Notify() got nil cause on attempt %d", attempt)
						}

						if wait != 5*time.Second {
							t.Errorf("Notify() wait = %v, want 5s", wait)
						}

						notified = append(notified, attempt)
					},
				})

				if tc.wantErr == nil && err != nil {
					t.Fatalf("Do() failed: %v", err)
				}

				if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
					t.Fatalf("Do() error = %v, want %v", err, tc.wantErr)
				}

				if tc.wantErrText != "" && (err == nil || !strings.Contains(err.Error(), tc.wantErrText)) {
					t.Errorf("Do() error = %v, want it to mention %q", err, tc.wantErrText)
				}

				if path != tc.wantPath {
					t.Errorf("Do() path = %q, want %q", path, tc.wantPath)
				}

				if *calls != tc.wantCalls {
					t.Errorf("op called %d times, want %d", *calls, tc.wantCalls)
				}

				if elapsed := time.Since(start); elapsed != tc.wantElapsed {
					t.Errorf("elapsed = %v, want %v", elapsed, tc.wantElapsed)
				}

				if fmt.Sprint(notified) != fmt.Sprint(tc.wantNotify) {
					t.Errorf("notified attempts = %v, want %v", notified, tc.wantNotify)
				}
			})
		})
	}
}

// The caller gets back exactly the n-th cause, not a wrapper around it.
func TestDoReturnsLastCauseUnchanged(t *testing.T) {
	causes := []error{errors.New("first"), errors.New("second"), errors.New("third")}

	synctest.Test(t, func(t *testing.T) {
		calls := 0
		op := func(context.Context) entity.Outcome {
			cause := causes[calls]
			calls++

			return entity.Failure(entity.FailureTransient, cause)
		}

		_, err := retry.Do(t.Context(), op, retry.Policy{MaxRetries: len(causes), Delay: time.Second})
		if err != causes[len(causes)-1] { //nolint:errorlint // identity is the property under test
			t.Fatalf("Do() error = %v, want the last cause %v", err, causes[len(causes)-1])
		}
	})
}

func TestDoRejectsZeroRetries(t *testing.T) {
	t.Parallel()

	op, calls := script(entity.Success("/out/a.mp3"))

	_, err := retry.Do(t.Context(), op, retry.Policy{MaxRetries: 0})
	if !errors.Is(err, errs.ErrInvalidSetting) {
		t.Fatalf("Do() error = %v, want ErrInvalidSetting", err)
	}

	if *calls != 0 {
		t.Errorf("op called %d times, want 0", *calls)
	}
}
