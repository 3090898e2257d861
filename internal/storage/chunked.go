package storage

import (
	"context"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// batchLimit is the store's per-batch write ceiling.
const batchLimit = 500

// bulkOp enqueues one write on a BulkWriter. Ops are closures so the same op
// can be re-enqueued on a fresh writer when a transient failure is retried.
type bulkOp func(bw *firestore.BulkWriter) (*firestore.BulkWriterJob, error)

// BulkReport summarizes a chunked bulk write run.
type BulkReport struct {
	Succeeded    int
	Failed       int
	FailedChunks int
}

// IsTransient reports whether a write error is worth retrying. Permanent
// errors (not-found, invalid-argument, permission) are not.
func IsTransient(err error) bool {
	switch status.Code(err) {
	case codes.Internal, codes.Unavailable:
		return true
	}
	return false
}

// runChunked commits ops in chunks of batchLimit. Each chunk is attempted
// independently: a failing chunk is counted and logged while the remaining
// chunks still commit, so a bad stretch of writes never blocks the rest of
// the run. When retryTransient is set, individual writes that failed with a
// transient code get one re-attempt on a fresh writer.
func (c *Client) runChunked(ctx context.Context, ops []bulkOp, retryTransient bool) BulkReport {
	var report BulkReport

	for start := 0; start < len(ops); start += batchLimit {
		end := start + batchLimit
		if end > len(ops) {
			end = len(ops)
		}
		chunk := ops[start:end]

		failed := c.commitChunk(ctx, chunk, &report)
		if len(failed) > 0 {
			report.FailedChunks++
			if retryTransient {
				slog.Warn("Retrying transient write failures", "count", len(failed))
				report.Failed -= len(failed)
				still := c.commitChunk(ctx, failed, &report)
				slog.Info("Transient retry finished", "recovered", len(failed)-len(still), "failed", len(still))
			}
		}
	}

	return report
}

// commitChunk flushes one chunk and returns the ops that failed transiently.
// Permanent failures are only counted.
func (c *Client) commitChunk(ctx context.Context, chunk []bulkOp, report *BulkReport) []bulkOp {
	bw := c.fs.BulkWriter(ctx)

	type pending struct {
		op  bulkOp
		job *firestore.BulkWriterJob
	}
	var jobs []pending

	for _, op := range chunk {
		job, err := op(bw)
		if err != nil {
			slog.Warn("Failed to enqueue bulk write", "error", err)
			report.Failed++
			continue
		}
		jobs = append(jobs, pending{op: op, job: job})
	}
	bw.End()

	var transient []bulkOp
	for _, p := range jobs {
		if _, err := p.job.Results(); err != nil {
			report.Failed++
			if IsTransient(err) {
				transient = append(transient, p.op)
			} else {
				slog.Warn("Bulk write failed permanently", "error", err, "code", status.Code(err))
			}
			continue
		}
		report.Succeeded++
	}
	return transient
}
