package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goToken/revocation"
)

// IntrospectResult describes a token without rejecting it for revocation.
type IntrospectResult struct {
	VerifyResult
	Revoked bool
}

// RunIntrospect decodes raw and reports its revocation status. Unlike
// RunVerify it succeeds for revoked tokens and never fails open.
func RunIntrospect(ctx context.Context, raw string, deps VerifyDeps) IntrospectResult {
	deps.FailOpen = false
	v := RunVerify(ctx, raw, "", deps)
	if v.Failure == VerifyFailureRevoked {
		return IntrospectResult{
			VerifyResult: VerifyResult{
				Failure:            VerifyFailureNone,
				Claims:             v.Claims,
				RevokedByWatermark: v.RevokedByWatermark,
			},
			Revoked: true,
		}
	}
	return IntrospectResult{VerifyResult: v}
}

// RevokedListStore lists a subject's revocation records.
type RevokedListStore interface {
	ListForSubject(ctx context.Context, subjectID string) ([]revocation.Record, error)
}

// Pinger is implemented by stores that can report backend latency.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// RunListRevoked returns the subject's records, newest first.
func RunListRevoked(ctx context.Context, subjectID string, store RevokedListStore) ([]revocation.Record, error) {
	records, err := store.ListForSubject(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []revocation.Record{}
	}
	return records, nil
}

// RunPing reports store latency. Stores without a Ping method report zero.
func RunPing(ctx context.Context, store interface{}) (time.Duration, error) {
	p, ok := store.(Pinger)
	if !ok {
		return 0, nil
	}
	return p.Ping(ctx)
}
