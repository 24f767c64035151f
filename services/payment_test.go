package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"propmarket/models"
	"propmarket/storage"
)

func TestMatchUnlockFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.approvedListing(t, "Lalitpur", "Jhamsikhel")
	buyer := newActor()
	_, m := env.matchedRequest(t, buyer)

	views, err := env.payments.ListMatchViews(ctx, buyer, m.RequestID)
	if err != nil {
		t.Fatalf("list views: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	teaser := views[0].Property
	if !teaser.Redacted || teaser.Price != nil || teaser.Contact != nil || teaser.Address != "" || teaser.Description != "" {
		t.Fatalf("locked match leaked details: %+v", teaser)
	}
	if len(teaser.Features) != teaserFeatures {
		t.Fatalf("expected %d teaser features, got %v", teaserFeatures, teaser.Features)
	}

	if _, err := env.payments.MatchDetail(ctx, buyer, m.ID); !errors.Is(err, models.ErrPaymentRequired) {
		t.Fatalf("expected payment required, got %v", err)
	}
	if _, err := env.payments.RequestMatchUnlock(ctx, buyer, m.ID, "gold"); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected unknown tier to be refused, got %v", err)
	}
	if _, err := env.payments.RequestMatchUnlock(ctx, newActor(), m.ID, ""); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected stranger to be refused, got %v", err)
	}

	pending, err := env.payments.RequestMatchUnlock(ctx, buyer, m.ID, "premium")
	if err != nil {
		t.Fatalf("request unlock: %v", err)
	}
	if pending.Status != models.UnlockStatusPaymentPending || pending.UnlockFee == nil || *pending.UnlockFee != 999 {
		t.Fatalf("unexpected pending match %+v", pending)
	}
	if pending.ProviderRef == "" {
		t.Fatalf("expected provider reference")
	}

	// retrying keeps the same reference
	retry, err := env.payments.RequestMatchUnlock(ctx, buyer, m.ID, "standard")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.ProviderRef != pending.ProviderRef {
		t.Fatalf("expected the pending payment to be reused")
	}

	inq := paymentInquiry(t, env.store, m.ID)
	if inq.Status != models.InquiryStatusPaymentRequired {
		t.Fatalf("expected mirrored inquiry in payment_required, got %s", inq.Status)
	}

	res, err := env.payments.ConfirmPayment(ctx, pending.ProviderRef, true, "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if res.Kind != PaymentKindMatch || res.Status != models.UnlockStatusAdminReview {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, err := env.payments.ConfirmPayment(ctx, pending.ProviderRef, true, ""); err != nil {
		t.Fatalf("replayed webhook should be a no-op: %v", err)
	}
	if _, err := env.payments.MatchDetail(ctx, buyer, m.ID); !errors.Is(err, models.ErrStillLocked) {
		t.Fatalf("expected still locked during review, got %v", err)
	}

	// cannot skip the review
	if _, err := env.payments.UnlockMatch(ctx, m.ID); !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("expected unlock before approval to fail, got %v", err)
	}
	if _, err := env.payments.ApproveMatchPayment(ctx, m.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := env.payments.MatchDetail(ctx, buyer, m.ID); !errors.Is(err, models.ErrStillLocked) {
		t.Fatalf("expected still locked until released, got %v", err)
	}

	unlocked, err := env.payments.UnlockMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if unlocked.UnlockedAt == nil || unlocked.PaidAt == nil || unlocked.ApprovedAt == nil {
		t.Fatalf("expected every stamp set, got %+v", unlocked)
	}

	detail, err := env.payments.MatchDetail(ctx, buyer, m.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.Property.Redacted || detail.Property.Contact == nil || detail.Property.Price == nil {
		t.Fatalf("expected full listing after unlock, got %+v", detail.Property)
	}

	inq = paymentInquiry(t, env.store, m.ID)
	if inq.Status != models.InquiryStatusApproved || inq.MatchesLocked {
		t.Fatalf("expected mirrored inquiry cleared, got %s locked=%v", inq.Status, inq.MatchesLocked)
	}
	if inq.MatchDetails.PaymentStatus != models.UnlockStatusUnlocked {
		t.Fatalf("expected mirrored payment status unlocked, got %s", inq.MatchDetails.PaymentStatus)
	}
}

func TestMatchPaymentFailureReturnsToLocked(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.approvedListing(t, "Lalitpur", "Jhamsikhel")
	buyer := newActor()
	_, m := env.matchedRequest(t, buyer)

	pending, err := env.payments.RequestMatchUnlock(ctx, buyer, m.ID, "")
	if err != nil {
		t.Fatalf("request unlock: %v", err)
	}
	if *pending.UnlockFee != 199 {
		t.Fatalf("expected standard fee, got %v", *pending.UnlockFee)
	}

	res, err := env.payments.ConfirmPayment(ctx, pending.ProviderRef, false, "card declined")
	if !errors.Is(err, models.ErrPaymentFailed) {
		t.Fatalf("expected payment failed, got %v", err)
	}
	if res == nil || res.Status != models.UnlockStatusLocked {
		t.Fatalf("expected locked result, got %+v", res)
	}

	again, err := env.payments.RequestMatchUnlock(ctx, buyer, m.ID, "")
	if err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if again.ProviderRef == pending.ProviderRef {
		t.Fatalf("expected a fresh reference after failure")
	}
	if _, err := env.payments.ConfirmPayment(ctx, pending.ProviderRef, true, ""); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected superseded reference to be refused, got %v", err)
	}
	if _, err := env.payments.ConfirmPayment(ctx, "pay_unknown", true, ""); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected unknown reference to be refused, got %v", err)
	}
}

func TestRequestUnlockRevealsEveryMatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.approvedListing(t, "Lalitpur", "Jhamsikhel")
	env.approvedListing(t, "Lalitpur", "Sanepa")
	buyer := newActor()
	req, m := env.matchedRequest(t, buyer)

	p, err := env.payments.RequestUnlock(ctx, buyer, req.ID)
	if err != nil {
		t.Fatalf("request unlock: %v", err)
	}
	if p.Status != models.UnlockStatusPaymentPending || p.Amount != 5000 || p.Currency != "NPR" {
		t.Fatalf("unexpected payment %+v", p)
	}

	if _, err := env.payments.ConfirmPayment(ctx, p.ProviderRef, true, ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// paid at request level but not released: per-match view reports review
	if _, err := env.payments.MatchDetail(ctx, buyer, m.ID); !errors.Is(err, models.ErrStillLocked) {
		t.Fatalf("expected still locked, got %v", err)
	}

	if _, err := env.payments.ApproveRequestPayment(ctx, req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := env.payments.UnlockRequest(ctx, req.ID); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	// idempotent
	p, err = env.payments.UnlockRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("unlock again: %v", err)
	}
	if p.Status != models.UnlockStatusUnlocked || p.UnlockedAt == nil {
		t.Fatalf("unexpected payment %+v", p)
	}

	views, err := env.payments.ListMatchViews(ctx, buyer, req.ID)
	if err != nil {
		t.Fatalf("views: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(views))
	}
	for _, v := range views {
		if v.Property.Redacted || v.Property.Contact == nil {
			t.Fatalf("expected every match revealed, got %+v", v.Property)
		}
		// the matches themselves stay locked
		if v.Status != models.UnlockStatusLocked {
			t.Fatalf("expected match status untouched, got %s", v.Status)
		}
	}

	inq, err := env.store.GetRequestInquiry(ctx, req.ID)
	if err != nil {
		t.Fatalf("get inquiry: %v", err)
	}
	if inq.MatchesLocked {
		t.Fatalf("expected request inquiry to report matches unlocked")
	}
}

func TestRequestPaymentFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	buyer := newActor()
	req, _, err := env.requests.Create(ctx, buyer, requestInput("Lalitpur"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err := env.payments.RequestUnlock(ctx, buyer, req.ID)
	if err != nil {
		t.Fatalf("request unlock: %v", err)
	}
	if _, err := env.payments.ConfirmPayment(ctx, p.ProviderRef, false, ""); !errors.Is(err, models.ErrPaymentFailed) {
		t.Fatalf("expected payment failed, got %v", err)
	}
	// the callback may be retried
	if _, err := env.payments.ConfirmPayment(ctx, p.ProviderRef, false, ""); !errors.Is(err, models.ErrPaymentFailed) {
		t.Fatalf("expected payment failed on replay, got %v", err)
	}

	got, err := env.payments.GetRequestPayment(ctx, buyer, req.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if got.Status != models.UnlockStatusLocked || got.FailureReason != "payment declined" {
		t.Fatalf("unexpected payment %+v", got)
	}

	if _, err := env.payments.ApproveRequestPayment(ctx, req.ID); !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("expected approve of locked payment to fail, got %v", err)
	}
}

func TestRequestUnlockWithoutPricing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.payments.pricing.RequestUnlock = 0
	buyer := newActor()
	req, _, err := env.requests.Create(ctx, buyer, requestInput("Lalitpur"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.payments.RequestUnlock(ctx, buyer, req.ID); err == nil {
		t.Fatalf("expected missing fee to be refused")
	}
	if _, err := env.payments.GetRequestPayment(ctx, buyer, req.ID); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected no payment stored, got %v", err)
	}
}

func paymentInquiry(t *testing.T, store storage.Store, matchID uuid.UUID) models.Inquiry {
	t.Helper()
	inqs, err := store.ListInquiries(context.Background(), storage.InquiryFilter{
		Type:    models.InquiryTypeMatchPayment,
		MatchID: &matchID,
	})
	if err != nil {
		t.Fatalf("list inquiries: %v", err)
	}
	if len(inqs) != 1 {
		t.Fatalf("expected one payment inquiry, got %d", len(inqs))
	}
	return inqs[0]
}
