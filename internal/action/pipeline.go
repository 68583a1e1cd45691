package action

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Channels-DVR-Goodies/processNewFiles/internal/engine"
	"github.com/Channels-DVR-Goodies/processNewFiles/internal/shadow"
	"github.com/Channels-DVR-Goodies/processNewFiles/pkg/logging"
)

// Pipeline ties together script generation, the shadow manager, and the
// executor, and applies the retry/backoff outcome against a tree's arena.
// It is invoked once per expired File node by the event-loop multiplexer.
type Pipeline struct {
	Tree     *engine.Tree
	Shadow   *shadow.Manager
	Executor Executor
	RetryCap int
	Logger   *logging.Logger
}

// NewPipeline constructs a Pipeline. A nil executor falls back to
// DefaultExecutor.
func NewPipeline(tree *engine.Tree, shadowMgr *shadow.Manager, executor Executor, logger *logging.Logger) *Pipeline {
	if executor == nil {
		executor = DefaultExecutor
	}
	return &Pipeline{
		Tree:     tree,
		Shadow:   shadowMgr,
		Executor: executor,
		RetryCap: DefaultRetryCap,
		Logger:   logger,
	}
}

// Fire runs the action pipeline for a single expired File node: it writes
// the pending shadow entry and script, runs the executor, and applies the
// retry/backoff outcome. On success the shadow entry is demoted to Done and
// the node is destroyed. On failure the retry counter is incremented and
// the idle interval grown; once the retry cap is reached the node is
// abandoned and destroyed, otherwise expiration is reset with reason Retry.
func (p *Pipeline) Fire(ctx context.Context, n *engine.Node, now time.Time) {
	script := Script(n.AbsPath, n.Reason.String(), p.Tree.ActionTemplate)

	if err := p.Shadow.MarkPending(n.RelPath, script); err != nil {
		p.Logger.Error(err)
		return
	}

	scriptPath := p.Tree.ShadowPathFor(n.RelPath)
	err := p.Executor(ctx, scriptPath)
	if err == nil {
		if markErr := p.Shadow.MarkDone(n.RelPath); markErr != nil {
			p.Logger.Error(markErr)
		}
		p.Logger.Infof("actioned %s (%s, %s)", n.AbsPath, n.Reason, humanizedSize(n.AbsPath))
		p.Tree.Arena.Drop(n.ID)
		return
	}

	n.RetryCount++
	n.IdleInterval = GrowIdleInterval(n.IdleInterval)

	cap := p.RetryCap
	if cap <= 0 {
		cap = DefaultRetryCap
	}
	if n.RetryCount >= cap {
		p.Logger.Error(fmt.Errorf("abandoning %s after %d retries: %w", n.AbsPath, n.RetryCount, err))
		p.Tree.Arena.Drop(n.ID)
		return
	}

	p.Logger.Warn(fmt.Errorf("retry %d/%d for %s: %w", n.RetryCount, cap, n.AbsPath, err))
	p.Tree.Arena.SetDeadline(n, now, engine.ReasonRetry)
}

// humanizedSize formats a path's current size for diagnostic logging,
// falling back to "unknown size" if the file can no longer be stat'd (it
// may have been removed by the action itself).
func humanizedSize(absPath string) string {
	info, err := os.Stat(absPath)
	if err != nil {
		return "unknown size"
	}
	return humanize.Bytes(uint64(info.Size()))
}
