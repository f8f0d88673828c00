package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/purgegate/internal/approval"
	"github.com/roach88/purgegate/internal/notify"
	"github.com/roach88/purgegate/internal/testutil"
)

// scenarioEpoch is the frozen start time for every scenario run.
var scenarioEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Result holds the transcript of a scenario run. Each executed step
// contributes one line; notifications pushed during a step follow it,
// indented.
type Result struct {
	Transcript []string
}

// Text renders the transcript as newline-separated text with a trailing
// newline, the format stored in golden files.
func (r *Result) Text() string {
	return strings.Join(r.Transcript, "\n") + "\n"
}

// runner carries the wired-up service and collaborators for one scenario.
type runner struct {
	svc   *approval.Service
	items *testutil.FakeItemStore
	rec   *notify.Recorder
	clock *testutil.ManualClock

	groupRef string
	seen     int // notifications already copied into the transcript
}

// Run executes a scenario against a freshly wired approval service and
// returns the transcript. The clock and request-id generator are pinned, so
// two runs of the same scenario produce byte-identical transcripts.
func Run(scenario *Scenario) (*Result, error) {
	groups := testutil.NewMemoryGroupStore(&approval.Group{
		ID:         scenario.Group.ID,
		ExternalID: scenario.Group.ExternalID,
		Name:       scenario.Group.Name,
		ChannelRef: scenario.Group.Channel,
	})

	dir := testutil.NewFakeDirectory()
	for _, m := range scenario.Members {
		dir.AddMember(scenario.Group.ID, m.ID, m.Name, m.Role)
	}

	items := testutil.NewFakeItemStore()
	for _, seed := range scenario.Items {
		status := seed.Status
		if status == "" {
			status = "open"
		}
		items.AddItem(approval.Item{
			ID:      seed.ID,
			GroupID: scenario.Group.ID,
			Title:   seed.Title,
			Status:  status,
		})
	}

	rec := notify.NewRecorder()
	clock := testutil.NewManualClock(scenarioEpoch)

	ids := make([]string, 16)
	for i := range ids {
		ids[i] = fmt.Sprintf("req-%d", i+1)
	}

	opts := []approval.Option{
		approval.WithClock(clock),
		approval.WithIDGenerator(approval.NewFixedGenerator(ids...)),
		approval.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	if scenario.TTL != "" {
		ttl, err := time.ParseDuration(scenario.TTL)
		if err != nil {
			return nil, fmt.Errorf("parse ttl: %w", err)
		}
		opts = append(opts, approval.WithRequestTTL(ttl))
	}

	r := &runner{
		svc:      approval.NewService(groups, dir, items, rec, opts...),
		items:    items,
		rec:      rec,
		clock:    clock,
		groupRef: scenario.Group.ExternalID,
	}

	result := &Result{}
	for i, step := range scenario.Steps {
		lines, err := r.runStep(step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		result.Transcript = append(result.Transcript, lines...)
	}
	return result, nil
}

// runStep executes one step and returns its transcript lines, including any
// notifications it pushed. Expected workflow failures become transcript
// lines; a returned error means the harness itself broke.
func (r *runner) runStep(step Step) ([]string, error) {
	ctx := context.Background()

	switch {
	case step.Initiate != nil:
		filter := approval.Filter(step.Initiate.Filter)
		if filter == "" {
			filter = approval.FilterCustom
		}
		req, err := r.svc.Initiate(ctx, approval.InitiateParams{
			GroupRef:     r.groupRef,
			RequesterRef: step.Initiate.Requester,
			ItemIDs:      step.Initiate.Items,
			Filter:       filter,
		})
		if err != nil {
			return r.withNotifications(fmt.Sprintf("initiate by %s -> error: %v", step.Initiate.Requester, err)), nil
		}
		return r.withNotifications(fmt.Sprintf(
			"initiate by %s -> created %s: %d item(s), requires %d of %d",
			step.Initiate.Requester, req.ID, len(req.Tasks), req.RequiredApprovals, req.TotalMembers,
		)), nil

	case step.Approve != nil:
		out, err := r.svc.RegisterApproval(ctx, r.groupRef, step.Approve.Voter)
		if err != nil {
			return nil, fmt.Errorf("register approval: %w", err)
		}
		return r.withNotifications(fmt.Sprintf("approve by %s -> %s: %s", step.Approve.Voter, out.Status, out.Message)), nil

	case step.Pending:
		req, err := r.svc.PendingRequest(ctx, r.groupRef)
		if err != nil {
			return nil, fmt.Errorf("pending request: %w", err)
		}
		if req == nil {
			return r.withNotifications("pending -> none"), nil
		}
		return r.withNotifications(fmt.Sprintf(
			"pending -> %s: %d/%d approvals, %d task(s)",
			req.ID, len(req.Approvals), req.RequiredApprovals, len(req.Tasks),
		)), nil

	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return nil, fmt.Errorf("parse advance: %w", err)
		}
		r.clock.Advance(d)
		return []string{fmt.Sprintf("advance %s", step.Advance)}, nil

	case step.RemoveItem != "":
		r.items.RemoveItem(step.RemoveItem)
		return []string{fmt.Sprintf("remove item %s", step.RemoveItem)}, nil
	}

	return nil, fmt.Errorf("empty step")
}

// withNotifications appends any notifications pushed since the last step,
// indented under the step line.
func (r *runner) withNotifications(line string) []string {
	lines := []string{line}
	msgs := r.rec.Messages()
	for _, m := range msgs[r.seen:] {
		lines = append(lines, fmt.Sprintf("  notify %s: %s", m.Channel, m.Text))
	}
	r.seen = len(msgs)
	return lines
}

// RunWithGolden executes a scenario and compares the transcript against the
// golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, []byte(result.Text()))
	return nil
}
