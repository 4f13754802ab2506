package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Mailer enqueues notification emails.
type Mailer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// ExpiryScanJob finds memberships and direct grants whose validity
// windows close within the horizon and notifies administrators, so
// access that should be renewed does not silently vanish.
type ExpiryScanJob struct {
	Pool    *pgxpool.Pool
	Mailer  Mailer
	Logger  *slog.Logger
	AdminTo string
	clock   func() time.Time
}

// NewExpiryScanJob wires dependencies for the scan handler.
func NewExpiryScanJob(pool *pgxpool.Pool, mailer Mailer, logger *slog.Logger, adminTo string) *ExpiryScanJob {
	return &ExpiryScanJob{
		Pool:    pool,
		Mailer:  mailer,
		Logger:  logger,
		AdminTo: adminTo,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type expiringGrant struct {
	MemberName string
	GrantName  string
	Kind       string
	EndDate    time.Time
}

// Handle processes TaskExpiryScan tasks.
func (j *ExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("expiry scan: handler not configured")
	}
	var payload ExpiryScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.HorizonDays <= 0 {
		payload.HorizonDays = 14
	}

	now := j.now()
	until := now.AddDate(0, 0, payload.HorizonDays)
	logger := j.logger().With(slog.Int("horizon_days", payload.HorizonDays))
	logger.Info("starting expiry scan")

	expiring, err := j.fetchExpiring(ctx, now, until)
	if err != nil {
		logger.Error("load expiring grants", slog.Any("error", err))
		return err
	}
	if len(expiring) == 0 {
		logger.Info("no windows closing inside horizon")
		return nil
	}

	if j.Mailer != nil && j.AdminTo != "" {
		if _, err := j.Mailer.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      j.AdminTo,
			Subject: fmt.Sprintf("%d access windows close within %d days", len(expiring), payload.HorizonDays),
			Body:    digestBody(expiring),
		}); err != nil {
			logger.Error("enqueue expiry digest", slog.Any("error", err))
			return err
		}
	}

	logger.Info("completed expiry scan", slog.Int("expiring", len(expiring)))
	return nil
}

func (j *ExpiryScanJob) fetchExpiring(ctx context.Context, from, until time.Time) ([]expiringGrant, error) {
	rows, err := j.Pool.Query(ctx, `
		SELECT m.display_name, r.name, 'role' AS kind, rm.end_date
		FROM role_members rm
		JOIN members m ON m.id = rm.member_id
		JOIN roles r ON r.id = rm.role_id
		WHERE rm.end_date BETWEEN $1 AND $2
		UNION ALL
		SELECT m.display_name, p.name, 'direct', mp.end_date
		FROM member_permissions mp
		JOIN members m ON m.id = mp.member_id
		JOIN permissions p ON p.id = mp.permission_id
		WHERE mp.end_date BETWEEN $1 AND $2
		ORDER BY 4`, from, until)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []expiringGrant
	for rows.Next() {
		var g expiringGrant
		if err := rows.Scan(&g.MemberName, &g.GrantName, &g.Kind, &g.EndDate); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func digestBody(grants []expiringGrant) string {
	var b strings.Builder
	b.WriteString("The following access windows close soon:\n\n")
	for _, g := range grants {
		fmt.Fprintf(&b, "- %s: %s (%s) ends %s\n", g.MemberName, g.GrantName, g.Kind, g.EndDate.Format("2006-01-02"))
	}
	return b.String()
}

func (j *ExpiryScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *ExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
