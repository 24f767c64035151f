package services

import (
	"context"
	"errors"
	"testing"

	"propmarket/models"
	"propmarket/workflow"
)

func TestMatchRequestKeepsThresholdAndOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	near := env.approvedListing(t, "Lalitpur", "Jhamsikhel")
	env.approvedListing(t, "Pokhara", "Lakeside")

	req, _, err := env.requests.Create(ctx, newActor(), requestInput("Lalitpur"))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	summary, err := env.match.MatchRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if summary.Considered != 2 || summary.Eligible != 2 {
		t.Fatalf("expected 2 considered and eligible, got %+v", summary)
	}
	if summary.Stored != 1 || summary.Best == nil || summary.Best.PropertyID != near.ID {
		t.Fatalf("expected only the Lalitpur listing to match, got %+v", summary)
	}
	if summary.Best.MatchScore != 100 {
		t.Fatalf("expected score 100, got %d", summary.Best.MatchScore)
	}
	// the inquiry is still pending, so matching moves it straight to system_matched
	if !summary.InquiryAdvanced {
		t.Fatalf("expected inquiry to advance")
	}

	got, err := env.store.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if got.Status != models.RequestStatusMatched || got.Matches != 1 {
		t.Fatalf("expected matched with 1 match, got %s/%d", got.Status, got.Matches)
	}

	// rerunning is stable
	again, err := env.match.MatchRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("rematch: %v", err)
	}
	matches, err := env.store.ListMatches(ctx, req.ID)
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != summary.Best.ID {
		t.Fatalf("expected the same single match after rematch, got %+v", matches)
	}
	if again.InquiryAdvanced {
		t.Fatalf("inquiry already matched should not advance again")
	}
}

func TestMatchRequestSkipsIneligible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.approvedListing(t, "Lalitpur", "Jhamsikhel")
	in := requestInput("Lalitpur")
	in.Ranges.Bedrooms = &models.IntRange{Min: intP(5)}
	req, _, err := env.requests.Create(ctx, newActor(), in)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	summary, err := env.match.MatchRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if summary.Eligible != 0 || summary.Stored != 0 {
		t.Fatalf("expected nothing eligible, got %+v", summary)
	}
	got, _ := env.store.GetRequest(ctx, req.ID)
	if got.Status != models.RequestStatusActive {
		t.Fatalf("expected active with no matches, got %s", got.Status)
	}
}

func TestRematchAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, loc := range []string{"Lalitpur", "Pokhara", "Kathmandu"} {
		if _, _, err := env.requests.Create(ctx, newActor(), requestInput(loc)); err != nil {
			t.Fatalf("create request: %v", err)
		}
	}
	env.approvedListing(t, "Pokhara", "Lakeside")

	processed, failed, err := env.match.RematchAll(ctx)
	if err != nil {
		t.Fatalf("rematch all: %v", err)
	}
	if processed != 3 || failed != 0 {
		t.Fatalf("expected 3 processed, got %d/%d", processed, failed)
	}
}

func TestInquiryLifecycleCompletesRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	listing := env.approvedListing(t, "Lalitpur", "Jhamsikhel")

	req, inq, err := env.requests.Create(ctx, newActor(), requestInput("Lalitpur"))
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	got, err := env.inquiries.Apply(ctx, inq.ID, workflow.Event{ID: "evt-approve", Kind: workflow.EventApprove})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got.Status != models.InquiryStatusSystemMatched {
		t.Fatalf("expected approval to run matching into system_matched, got %s", got.Status)
	}
	if got.MatchDetails == nil || got.MatchDetails.PropertyID == nil || *got.MatchDetails.PropertyID != listing.ID {
		t.Fatalf("expected match details for %s, got %+v", listing.ID, got.MatchDetails)
	}
	if got.MatchID == nil {
		t.Fatalf("expected match id on the inquiry")
	}

	steps := []workflow.Event{
		{Kind: workflow.EventCheckAvailability},
		{Kind: workflow.EventConfirmAvailability, Available: true},
		{Kind: workflow.EventCompleteVerification, Notes: " visited "},
	}
	for _, ev := range steps {
		if got, err = env.inquiries.Apply(ctx, inq.ID, ev); err != nil {
			t.Fatalf("%s: %v", ev.Kind, err)
		}
	}
	if got.Status != models.InquiryStatusVerificationComplete || got.MatchDetails.VerificationNotes != "visited" {
		t.Fatalf("unexpected inquiry before delivery: %+v", got)
	}

	deliver := workflow.Event{ID: "evt-deliver", Kind: workflow.EventDeliver}
	if got, err = env.inquiries.Apply(ctx, inq.ID, deliver); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.Status != models.InquiryStatusDelivered || got.DeliveredAt == nil {
		t.Fatalf("expected delivered, got %+v", got)
	}

	// replaying the same event is a no-op
	replay, err := env.inquiries.Apply(ctx, inq.ID, deliver)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.Version != got.Version {
		t.Fatalf("replay should not bump version: %d vs %d", replay.Version, got.Version)
	}

	r, err := env.store.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if r.Status != models.RequestStatusCompleted {
		t.Fatalf("expected request completed, got %s", r.Status)
	}

	_, err = env.inquiries.Apply(ctx, inq.ID, workflow.Event{Kind: workflow.EventReject, Reason: "late"})
	if !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("delivered inquiry must be terminal, got %v", err)
	}

	// a completed request is no longer rematched
	summary, err := env.match.MatchRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("match completed: %v", err)
	}
	if summary.Considered != 0 {
		t.Fatalf("expected completed request to be skipped, got %+v", summary)
	}
}

func TestOpenForMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.approvedListing(t, "Lalitpur", "Jhamsikhel")
	_, m := env.matchedRequest(t, newActor())

	inq, err := env.inquiries.OpenForMatch(ctx, m.ID, models.InquiryTypeAvailabilityCheck)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if inq.Status != models.InquiryStatusSystemMatched || !inq.MatchesLocked {
		t.Fatalf("unexpected inquiry %+v", inq)
	}

	again, err := env.inquiries.OpenForMatch(ctx, m.ID, models.InquiryTypeAvailabilityCheck)
	if err != nil {
		t.Fatalf("open again: %v", err)
	}
	if again.ID != inq.ID {
		t.Fatalf("expected the open inquiry to be reused")
	}

	unavailable, err := env.inquiries.Apply(ctx, inq.ID, workflow.Event{Kind: workflow.EventCheckAvailability})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	unavailable, err = env.inquiries.Apply(ctx, unavailable.ID, workflow.Event{Kind: workflow.EventConfirmAvailability})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if unavailable.Status != models.InquiryStatusRejected || unavailable.RejectionReason == "" {
		t.Fatalf("expected rejection for unavailable property, got %+v", unavailable)
	}

	if _, err := env.inquiries.OpenForMatch(ctx, m.ID, models.InquiryTypeMatchPayment); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected match_payment to be refused, got %v", err)
	}
}
