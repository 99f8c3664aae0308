package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/dirk.krummacker/identity-service/internal/identity"
	"gitlab.com/dirk.krummacker/identity-service/internal/lock"
	"gitlab.com/dirk.krummacker/identity-service/internal/metrics"
	"gitlab.com/dirk.krummacker/identity-service/internal/model"
	"gitlab.com/dirk.krummacker/identity-service/internal/store"
	"go.uber.org/zap"
)

// Identifier resolves observations to identity clusters.
type Identifier struct {
	store  store.Store
	locker lock.Locker
	logger *zap.Logger
}

// Result is the outcome of a single identify call.
type Result struct {
	Summary identity.Summary
	// Outcome is one of metrics.OutcomeNewPrimary, metrics.OutcomeNewSecondary and
	// metrics.OutcomeLookup.
	Outcome string
	// Created is the contact inserted by the call, if any.
	Created *model.Contact
	// Consolidation is the merge performed by the call, if any.
	Consolidation *identity.Consolidation
}

// NewIdentifier returns an Identifier working on the given store. The locker serializes requests
// sharing an email address or phone number.
func NewIdentifier(s store.Store, locker lock.Locker, logger *zap.Logger) *Identifier {
	return &Identifier{store: s, locker: locker, logger: logger}
}

// Identify links the observation into the identity cluster(s) it touches and returns the summary
// of the resulting cluster. Matching, merging and writing happen in a single transaction, so a
// failing call leaves no trace in the store. It returns identity.ErrInvalidObservation without
// touching the store if neither an email nor a phone number is given.
func (i *Identifier) Identify(ctx context.Context, email *string, phoneNumber *string) (Result, error) {
	observation, err := identity.NewObservation(email, phoneNumber)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	unlock, err := i.locker.Lock(ctx, lock.Keys(observation.Email, observation.PhoneNumber)...)
	metrics.LockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return Result{}, fmt.Errorf("lock observation: %w", err)
	}
	defer unlock()

	var result Result
	err = i.store.WithinTx(ctx, func(tx store.Tx) error {
		var err error
		result, err = i.identify(ctx, tx, observation)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	i.logResult(result)
	return result, nil
}

func (i *Identifier) identify(ctx context.Context, tx store.Tx, observation identity.Observation) (Result, error) {
	matches, err := tx.FindByEquality(ctx, observation.Email, observation.PhoneNumber)
	if err != nil {
		return Result{}, err
	}
	if len(matches) == 0 {
		created, err := tx.Insert(ctx, store.NewContact{
			Email:          observation.Email,
			PhoneNumber:    observation.PhoneNumber,
			LinkPrecedence: model.Primary,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{
			Summary: identity.Summarize(identity.Cluster{Primary: created}),
			Outcome: metrics.OutcomeNewPrimary,
			Created: &created,
		}, nil
	}

	var result Result
	primaryIds, err := identity.PrimaryIDs(matches)
	if err != nil {
		return Result{}, err
	}
	if len(primaryIds) > 1 {
		plan, err := consolidate(ctx, tx, primaryIds)
		if err != nil {
			return Result{}, err
		}
		result.Consolidation = &plan
		// Cluster membership changed, so match again.
		matches, err = tx.FindByEquality(ctx, observation.Email, observation.PhoneNumber)
		if err != nil {
			return Result{}, err
		}
	}

	primaryId, err := identity.PrimaryID(matches)
	if err != nil {
		return Result{}, err
	}
	if !containsContact(matches, primaryId) {
		if err := checkPrimary(ctx, tx, primaryId); err != nil {
			return Result{}, err
		}
	}
	members, err := tx.Select(ctx, store.IDOrLinkedID(primaryId))
	if err != nil {
		return Result{}, err
	}
	cluster, err := identity.NewCluster(primaryId, members)
	if err != nil {
		return Result{}, err
	}

	result.Outcome = metrics.OutcomeLookup
	if cluster.NeedsNewContact(observation) {
		created, err := tx.Insert(ctx, store.NewContact{
			Email:          observation.Email,
			PhoneNumber:    observation.PhoneNumber,
			LinkedId:       &cluster.Primary.Id,
			LinkPrecedence: model.Secondary,
		})
		if err != nil {
			return Result{}, err
		}
		cluster.Secondaries = append(cluster.Secondaries, created)
		result.Outcome = metrics.OutcomeNewSecondary
		result.Created = &created
	}
	result.Summary = identity.Summarize(cluster)
	return result, nil
}

// checkPrimary looks up a primary that was only reached through the linked id of a matched
// secondary.
func checkPrimary(ctx context.Context, tx store.Tx, id int64) error {
	primary, err := tx.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: primary %d of a matched secondary not found", identity.ErrInconsistent, id)
	}
	if err != nil {
		return err
	}
	if !primary.IsPrimary() {
		return fmt.Errorf("%w: contact %d is linked to but has precedence %q",
			identity.ErrInconsistent, id, primary.LinkPrecedence)
	}
	return nil
}

func containsContact(contacts []model.Contact, id int64) bool {
	for _, c := range contacts {
		if c.Id == id {
			return true
		}
	}
	return false
}

// consolidate merges the clusters of the given primaries into the cluster of the oldest one. The
// complete plan is computed from the fetched contacts before anything is written.
func consolidate(ctx context.Context, tx store.Tx, primaryIds []int64) (identity.Consolidation, error) {
	primaries, err := tx.Select(ctx, store.IDIn(primaryIds...))
	if err != nil {
		return identity.Consolidation{}, err
	}
	if len(primaries) != len(primaryIds) {
		return identity.Consolidation{}, fmt.Errorf("%w: found %d of the primaries %v",
			identity.ErrInconsistent, len(primaries), primaryIds)
	}
	linked, err := tx.Select(ctx, store.LinkedIDIn(primaryIds...))
	if err != nil {
		return identity.Consolidation{}, err
	}
	plan, err := identity.PlanConsolidation(primaries, linked)
	if err != nil {
		return identity.Consolidation{}, err
	}
	if err := tx.ApplyConsolidation(ctx, plan); err != nil {
		return identity.Consolidation{}, err
	}
	return plan, nil
}

// logResult logs the writes of a committed identify call.
func (i *Identifier) logResult(result Result) {
	if plan := result.Consolidation; plan != nil {
		metrics.Consolidations.Inc()
		metrics.DemotedPrimaries.Add(float64(len(plan.Demoted)))
		i.logger.Info("consolidated clusters",
			zap.Int64("survivor", plan.Survivor.Id),
			zap.Int64s("demoted", plan.Demoted),
			zap.Int64s("reparented", plan.Reparented))
	}
	switch result.Outcome {
	case metrics.OutcomeNewPrimary:
		i.logger.Info("created primary contact", zap.Int64("id", result.Created.Id))
	case metrics.OutcomeNewSecondary:
		i.logger.Info("created secondary contact",
			zap.Int64("id", result.Created.Id),
			zap.Int64("primary", result.Summary.PrimaryContactId))
	default:
		i.logger.Debug("resolved contact", zap.Int64("primary", result.Summary.PrimaryContactId))
	}
}
