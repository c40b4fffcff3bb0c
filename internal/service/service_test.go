package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/bardlex/ironshield/internal/challenge"
	"github.com/bardlex/ironshield/internal/database/postgres"
	"github.com/bardlex/ironshield/internal/messaging"
	"github.com/bardlex/ironshield/internal/solve"
	"github.com/bardlex/ironshield/pkg/errors"
)

const endpoint = "https://example.com/protected"

var now = time.UnixMilli(1_700_000_000_000)

type mocks struct {
	api       *MockChallengeAPI
	solver    *MockSolver
	store     *MockStore
	publisher *MockPublisher
}

func newTestService(t *testing.T) (*Service, mocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := mocks{
		api:       NewMockChallengeAPI(ctrl),
		solver:    NewMockSolver(ctrl),
		store:     NewMockStore(ctrl),
		publisher: NewMockPublisher(ctrl),
	}
	svc := New(m.api, m.solver, nil,
		WithStore(m.store),
		WithPublisher(m.publisher),
		WithClock(func() time.Time { return now }),
	)
	return svc, m
}

func testChallenge() *challenge.Challenge {
	return &challenge.Challenge{
		RandomNonce:         "a1b2c3d4",
		CreatedTime:         now.UnixMilli(),
		ExpirationTime:      now.Add(30 * time.Second).UnixMilli(),
		WebsiteID:           "example.com",
		ChallengeParam:      challenge.TargetForDifficulty(100),
		RecommendedAttempts: 200,
	}
}

func testResult(ch *challenge.Challenge) *solve.Result {
	return &solve.Result{
		Solution: &challenge.Solution{SolvedChallenge: *ch, Solution: 402},
		Telemetry: solve.Telemetry{
			Elapsed:           50 * time.Millisecond,
			EstimatedAttempts: 404,
			HashRate:          8080,
			Estimated:         true,
		},
		Config: solve.SolveConfig{ThreadCount: 4, UseMultithreaded: true},
		Worker: 2,
	}
}

func TestService_Fetch(t *testing.T) {
	svc, m := newTestService(t)
	ch := testChallenge()

	m.api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(ch, nil)

	got, err := svc.Fetch(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if got != ch {
		t.Errorf("Fetch() = %+v, want %+v", got, ch)
	}
}

func TestService_Solve(t *testing.T) {
	svc, m := newTestService(t)
	ch := testChallenge()
	result := testResult(ch)
	opts := solve.DefaultOptions()

	m.api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(ch, nil)
	m.solver.EXPECT().Solve(gomock.Any(), ch, opts).Return(result, nil)
	m.store.EXPECT().RecordSolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *postgres.Solve) error {
			if s.Nonce != 402 || s.Threads != 4 || !s.Multithreaded || s.EstimatedAttempts != 404 {
				t.Errorf("unexpected record %+v", s)
			}
			if s.Endpoint != endpoint || s.WebsiteID != "example.com" || !s.SolvedAt.Equal(now) {
				t.Errorf("unexpected record identity %+v", s)
			}
			return nil
		})
	m.publisher.EXPECT().PublishSolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *messaging.SolveEvent) error {
			if e.EventID == "" || e.Nonce != 402 || e.HashRate != 8080 {
				t.Errorf("unexpected event %+v", e)
			}
			return nil
		})

	solved, err := svc.Solve(context.Background(), endpoint, opts)
	if err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
	if solved.Challenge != ch || solved.Result != result {
		t.Errorf("Solve() = %+v", solved)
	}
}

func TestService_Solve_SideEffectFailuresIgnored(t *testing.T) {
	svc, m := newTestService(t)
	ch := testChallenge()

	m.api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(ch, nil)
	m.solver.EXPECT().Solve(gomock.Any(), ch, gomock.Any()).Return(testResult(ch), nil)
	m.store.EXPECT().RecordSolve(gomock.Any(), gomock.Any()).Return(fmt.Errorf("postgres down"))
	m.publisher.EXPECT().PublishSolve(gomock.Any(), gomock.Any()).Return(fmt.Errorf("kafka down"))

	if _, err := svc.Solve(context.Background(), endpoint, solve.DefaultOptions()); err != nil {
		t.Fatalf("Solve() error = %v, want side effect failures ignored", err)
	}
}

func TestService_Solve_RecordsAfterCallerCancels(t *testing.T) {
	svc, m := newTestService(t)
	ch := testChallenge()
	ctx, cancel := context.WithCancel(context.Background())

	m.api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(ch, nil)
	m.solver.EXPECT().Solve(gomock.Any(), ch, gomock.Any()).
		DoAndReturn(func(context.Context, *challenge.Challenge, solve.Options) (*solve.Result, error) {
			cancel()
			return testResult(ch), nil
		})
	m.store.EXPECT().RecordSolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ *postgres.Solve) error {
			if ctx.Err() != nil {
				t.Errorf("record context already done: %v", ctx.Err())
			}
			return nil
		})
	m.publisher.EXPECT().PublishSolve(gomock.Any(), gomock.Any()).Return(nil)

	if _, err := svc.Solve(ctx, endpoint, solve.DefaultOptions()); err != nil {
		t.Fatalf("Solve() error: %v", err)
	}
}

func TestService_Solve_Failures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason string
	}{
		{"expired", errors.New(errors.ErrorTypeChallenge, "solve", "challenge expired").WithKind(solve.ErrChallengeExpired), "expired"},
		{"no solution", errors.New(errors.ErrorTypeSolver, "solve", "no solution").WithKind(solve.ErrNoSolutionFound), "no_solution"},
		{"verification", errors.New(errors.ErrorTypeVerification, "solve", "rejected").WithKind(solve.ErrVerificationFailed), "verification_failed"},
		{"worker", errors.New(errors.ErrorTypeSolver, "solve", "worker failed").WithKind(solve.ErrWorkerFailure), "worker_failure"},
		{"cancelled", errors.Wrap(context.Canceled, errors.ErrorTypeInternal, "solve", "cancelled"), "cancelled"},
		{"other", fmt.Errorf("boom"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(t)
			ch := testChallenge()

			m.api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(ch, nil)
			m.solver.EXPECT().Solve(gomock.Any(), ch, gomock.Any()).Return(nil, tt.err)
			m.store.EXPECT().RecordFailure("example.com", tt.reason)

			_, err := svc.Solve(context.Background(), endpoint, solve.DefaultOptions())
			if err != tt.err {
				t.Errorf("Solve() error = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestService_Solve_FetchFailure(t *testing.T) {
	svc, m := newTestService(t)
	fetchErr := errors.New(errors.ErrorTypeNetwork, "fetch_challenge", "unreachable")

	m.api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(nil, fetchErr)

	if _, err := svc.Solve(context.Background(), endpoint, solve.DefaultOptions()); err != fetchErr {
		t.Errorf("Solve() error = %v, want %v", err, fetchErr)
	}
}

func TestService_Validate_UsesCachedToken(t *testing.T) {
	svc, m := newTestService(t)
	token := &challenge.Token{ChallengeSignature: "sig", ValidFor: now.Add(time.Hour).UnixMilli()}

	m.store.EXPECT().CachedToken(gomock.Any(), endpoint).Return(token, true)
	m.publisher.EXPECT().PublishToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e *messaging.TokenEvent) error {
			if !e.Cached || e.ValidFor != token.ValidFor {
				t.Errorf("unexpected token event %+v", e)
			}
			return nil
		})

	got, err := svc.Validate(context.Background(), endpoint, solve.DefaultOptions())
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if !got.Cached || got.Token != token || got.Solved != nil {
		t.Errorf("Validate() = %+v", got)
	}
}

func TestService_Validate_SolvesAndSubmits(t *testing.T) {
	svc, m := newTestService(t)
	ch := testChallenge()
	result := testResult(ch)
	token := &challenge.Token{ChallengeSignature: "sig", ValidFor: now.Add(time.Hour).UnixMilli(), AuthSignature: "auth"}

	gomock.InOrder(
		m.store.EXPECT().CachedToken(gomock.Any(), endpoint).Return(nil, false),
		m.api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(ch, nil),
		m.solver.EXPECT().Solve(gomock.Any(), ch, gomock.Any()).Return(result, nil),
		m.store.EXPECT().RecordSolve(gomock.Any(), gomock.Any()).Return(nil),
		m.publisher.EXPECT().PublishSolve(gomock.Any(), gomock.Any()).Return(nil),
		m.api.EXPECT().SubmitSolution(gomock.Any(), result.Solution).Return(token, nil),
		m.store.EXPECT().CacheToken(gomock.Any(), endpoint, token).Return(nil),
		m.publisher.EXPECT().PublishToken(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *messaging.TokenEvent) error {
				if e.Cached || e.WebsiteID != "example.com" {
					t.Errorf("unexpected token event %+v", e)
				}
				return nil
			}),
	)

	got, err := svc.Validate(context.Background(), endpoint, solve.DefaultOptions())
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if got.Cached || got.Token != token || got.Solved == nil || got.Solved.Result != result {
		t.Errorf("Validate() = %+v", got)
	}
}

func TestService_Validate_Rejected(t *testing.T) {
	svc, m := newTestService(t)
	ch := testChallenge()
	rejected := errors.New(errors.ErrorTypeValidation, "submit_solution", "api reported failure")

	m.store.EXPECT().CachedToken(gomock.Any(), endpoint).Return(nil, false)
	m.api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(ch, nil)
	m.solver.EXPECT().Solve(gomock.Any(), ch, gomock.Any()).Return(testResult(ch), nil)
	m.store.EXPECT().RecordSolve(gomock.Any(), gomock.Any()).Return(nil)
	m.publisher.EXPECT().PublishSolve(gomock.Any(), gomock.Any()).Return(nil)
	m.api.EXPECT().SubmitSolution(gomock.Any(), gomock.Any()).Return(nil, rejected)

	if _, err := svc.Validate(context.Background(), endpoint, solve.DefaultOptions()); err != rejected {
		t.Errorf("Validate() error = %v, want %v", err, rejected)
	}
}

func TestService_Validate_ExpiredToken(t *testing.T) {
	svc, m := newTestService(t)
	ch := testChallenge()

	m.store.EXPECT().CachedToken(gomock.Any(), endpoint).Return(nil, false)
	m.api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(ch, nil)
	m.solver.EXPECT().Solve(gomock.Any(), ch, gomock.Any()).Return(testResult(ch), nil)
	m.store.EXPECT().RecordSolve(gomock.Any(), gomock.Any()).Return(nil)
	m.publisher.EXPECT().PublishSolve(gomock.Any(), gomock.Any()).Return(nil)
	m.api.EXPECT().SubmitSolution(gomock.Any(), gomock.Any()).
		Return(&challenge.Token{ValidFor: now.UnixMilli()}, nil)

	_, err := svc.Validate(context.Background(), endpoint, solve.DefaultOptions())
	if !errors.IsType(err, errors.ErrorTypeValidation) {
		t.Errorf("Validate() error = %v, want validation error", err)
	}
}

func TestService_NoBackends(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := NewMockChallengeAPI(ctrl)
	solver := NewMockSolver(ctrl)
	svc := New(api, solver, nil, WithClock(func() time.Time { return now }))

	ch := testChallenge()
	result := testResult(ch)
	token := &challenge.Token{ValidFor: now.Add(time.Minute).UnixMilli()}

	api.EXPECT().FetchChallenge(gomock.Any(), endpoint).Return(ch, nil)
	solver.EXPECT().Solve(gomock.Any(), ch, gomock.Any()).Return(result, nil)
	api.EXPECT().SubmitSolution(gomock.Any(), result.Solution).Return(token, nil)

	got, err := svc.Validate(context.Background(), endpoint, solve.DefaultOptions())
	if err != nil || got.Token != token {
		t.Errorf("Validate() = %+v, %v", got, err)
	}
}

func TestSolveRecordAndEvent(t *testing.T) {
	ch := testChallenge()
	record := SolveRecord(endpoint, ch, testResult(ch), now)

	if record.RecommendedAttempts != 200 || record.ElapsedMs != 50 || record.HashRate != 8080 {
		t.Errorf("SolveRecord() = %+v", record)
	}
	if !record.ExpiresAt.Equal(ch.ExpiresAt()) {
		t.Errorf("ExpiresAt = %v, want %v", record.ExpiresAt, ch.ExpiresAt())
	}

	event := SolveEvent(record)
	if event.Attempts != 404 || event.Threads != 4 || !event.SolvedAt.Equal(now) || event.EventID == "" {
		t.Errorf("SolveEvent() = %+v", event)
	}
}
