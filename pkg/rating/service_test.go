package rating

import (
	"context"
	"testing"

	"github.com/trydirect/stacker/internal/apperr"
)

type fakeDeploymentLookup struct {
	owner    bool
	complete bool
	err      error
}

func (f *fakeDeploymentLookup) IsOwner(ctx context.Context, deploymentHash, userID string) (bool, error) {
	return f.owner, f.err
}

func (f *fakeDeploymentLookup) IsComplete(ctx context.Context, deploymentHash string) (bool, error) {
	return f.complete, f.err
}

func TestSubmit_RejectsNonOwner(t *testing.T) {
	svc := NewService(nil, &fakeDeploymentLookup{owner: false, complete: true}, nil)

	_, err := svc.Submit(context.Background(), "dh1", "user-1", SubmitRequest{Score: 5})

	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindForbidden {
		t.Fatalf("Submit() error = %v, want Forbidden", err)
	}
}

func TestSubmit_RejectsIncompleteDeployment(t *testing.T) {
	svc := NewService(nil, &fakeDeploymentLookup{owner: true, complete: false}, nil)

	_, err := svc.Submit(context.Background(), "dh1", "user-1", SubmitRequest{Score: 5})

	ae, ok := apperr.As(err)
	if !ok || ae.Kind != apperr.KindConflict {
		t.Fatalf("Submit() error = %v, want Conflict", err)
	}
}
