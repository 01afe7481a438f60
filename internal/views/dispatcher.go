// Package views maintains the derived cross-cutting memberships of the
// pipeline (sales queue, deployed roster, ready-for-deployment list) in
// Redis sets, updated incrementally after every accepted transition.
package views

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"pipetrack/internal/database"
	"pipetrack/internal/pipeline"
)

// Redis keys owned by the dispatcher.
const (
	KeySalesQueue = "views:sales_queue"
	KeyDeployed   = "views:deployed"
	KeyReady      = "views:ready"

	// EventChannel carries stage-change events for websocket fan-out.
	EventChannel = "pipeline:events"
)

// Event is published on EventChannel after every accepted transition.
type Event struct {
	EmpID      string    `json:"emp_id"`
	Stage      string    `json:"stage"`
	SalesQueue bool      `json:"sales_queue"`
	Deployed   bool      `json:"deployed"`
	Ready      bool      `json:"ready"`
	At         time.Time `json:"at"`
}

// Membership is a candidate's computed membership in the three views.
type Membership struct {
	SalesQueue bool
	Deployed   bool
	Ready      bool
}

// Dispatcher updates and serves the derived views. It never mutates
// candidate or interview records.
type Dispatcher struct {
	redis          redis.UniversalClient
	readyThreshold int
}

// NewDispatcher builds a dispatcher. readyThreshold is the minimum score
// both dimensions of the latest completed mock must reach for the
// ready-for-deployment list.
func NewDispatcher(client redis.UniversalClient, readyThreshold int) *Dispatcher {
	return &Dispatcher{redis: client, readyThreshold: readyThreshold}
}

// Classify computes view membership from the candidate's interview sets.
// Pure and deterministic; the single source of truth for both the
// incremental path and full recomputation.
func (d *Dispatcher) Classify(cand database.Candidate) Membership {
	var m Membership

	for _, ci := range cand.ClientInterviews {
		if ci.DeployedStatus && ci.Result == database.ResultSelected {
			m.Deployed = true
			break
		}
	}

	if cand.TerminalState == "" && !m.Deployed {
		for _, mi := range cand.MockInterviews {
			if mi.SentToSales {
				m.SalesQueue = true
				break
			}
		}
	}

	if !m.Deployed {
		latest := pipeline.LatestMock(cand.MockInterviews)
		if latest != nil &&
			latest.Status == database.InterviewCompleted &&
			latest.TechnicalScore != nil && *latest.TechnicalScore >= d.readyThreshold &&
			latest.CommunicationScore != nil && *latest.CommunicationScore >= d.readyThreshold {
			m.Ready = true
		}
	}

	return m
}

// CandidateChanged applies the candidate's current membership to the three
// sets and publishes a stage-change event. Implements pipeline.Notifier.
func (d *Dispatcher) CandidateChanged(ctx context.Context, cand database.Candidate, stage pipeline.Stage) error {
	m := d.Classify(cand)

	event, err := json.Marshal(Event{
		EmpID:      cand.EmpID,
		Stage:      string(stage),
		SalesQueue: m.SalesQueue,
		Deployed:   m.Deployed,
		Ready:      m.Ready,
		At:         time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	pipe := d.redis.TxPipeline()
	applySet(ctx, pipe, KeySalesQueue, cand.EmpID, m.SalesQueue)
	applySet(ctx, pipe, KeyDeployed, cand.EmpID, m.Deployed)
	applySet(ctx, pipe, KeyReady, cand.EmpID, m.Ready)
	pipe.Publish(ctx, EventChannel, event)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("apply view membership for %s: %w", cand.EmpID, err)
	}
	return nil
}

// Recompute rebuilds all three sets from scratch. Used by the worker as a
// reconciliation pass; readers see either the old or the new sets, never a
// partial one.
func (d *Dispatcher) Recompute(ctx context.Context, candidates []database.Candidate) error {
	sales := make([]string, 0, len(candidates))
	deployed := make([]string, 0, len(candidates))
	ready := make([]string, 0, len(candidates))

	for _, cand := range candidates {
		m := d.Classify(cand)
		if m.SalesQueue {
			sales = append(sales, cand.EmpID)
		}
		if m.Deployed {
			deployed = append(deployed, cand.EmpID)
		}
		if m.Ready {
			ready = append(ready, cand.EmpID)
		}
	}

	if err := d.replaceSet(ctx, KeySalesQueue, sales); err != nil {
		return err
	}
	if err := d.replaceSet(ctx, KeyDeployed, deployed); err != nil {
		return err
	}
	return d.replaceSet(ctx, KeyReady, ready)
}

// SalesQueue lists candidates forwarded to sales with no terminal outcome.
func (d *Dispatcher) SalesQueue(ctx context.Context) ([]string, error) {
	return d.members(ctx, KeySalesQueue)
}

// Deployed lists candidates placed with a client.
func (d *Dispatcher) Deployed(ctx context.Context) ([]string, error) {
	return d.members(ctx, KeyDeployed)
}

// ReadyForDeployment lists candidates whose latest completed mock cleared
// the threshold and who are not yet deployed.
func (d *Dispatcher) ReadyForDeployment(ctx context.Context) ([]string, error) {
	return d.members(ctx, KeyReady)
}

func (d *Dispatcher) members(ctx context.Context, key string) ([]string, error) {
	members, err := d.redis.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	sort.Strings(members)
	return members, nil
}

func (d *Dispatcher) replaceSet(ctx context.Context, key string, members []string) error {
	tmp := key + ":next"
	pipe := d.redis.TxPipeline()
	pipe.Del(ctx, tmp)
	if len(members) > 0 {
		args := make([]any, len(members))
		for i, m := range members {
			args[i] = m
		}
		pipe.SAdd(ctx, tmp, args...)
		pipe.Rename(ctx, tmp, key)
	} else {
		pipe.Del(ctx, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

func applySet(ctx context.Context, pipe redis.Pipeliner, key, member string, present bool) {
	if present {
		pipe.SAdd(ctx, key, member)
	} else {
		pipe.SRem(ctx, key, member)
	}
}
