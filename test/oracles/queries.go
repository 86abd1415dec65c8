package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariants a stress run checks. Each query returns the
// offending rows, so an empty result means the invariant holds.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_aggregate_matches_completed",
			SQL: `WITH recomputed AS (
                      SELECT provider_id,
                             COUNT(*) FILTER (WHERE rating = 1) AS s1,
                             COUNT(*) FILTER (WHERE rating = 2) AS s2,
                             COUNT(*) FILTER (WHERE rating = 3) AS s3,
                             COUNT(*) FILTER (WHERE rating = 4) AS s4,
                             COUNT(*) FILTER (WHERE rating = 5) AS s5,
                             COUNT(*) AS jobs
                      FROM service_requests
                      WHERE status = 'completed' AND provider_id IS NOT NULL
                      GROUP BY provider_id)
                  SELECT COALESCE(p.provider_id, r.provider_id) AS provider_id
                  FROM provider_ratings p
                  FULL OUTER JOIN recomputed r ON r.provider_id = p.provider_id
                  WHERE COALESCE(p.stars_1, 0) <> COALESCE(r.s1, 0)
                     OR COALESCE(p.stars_2, 0) <> COALESCE(r.s2, 0)
                     OR COALESCE(p.stars_3, 0) <> COALESCE(r.s3, 0)
                     OR COALESCE(p.stars_4, 0) <> COALESCE(r.s4, 0)
                     OR COALESCE(p.stars_5, 0) <> COALESCE(r.s5, 0)
                     OR COALESCE(p.completed_jobs, 0) <> COALESCE(r.jobs, 0)`,
		},
		{
			Name: "O2_no_accept_after_expiry",
			SQL: `SELECT id, accepted_at, expires_at FROM service_requests
                  WHERE accepted_at IS NOT NULL AND accepted_at > expires_at`,
		},
		{
			Name: "O3_no_early_expiry",
			SQL: `SELECT id, expired_at, expires_at FROM service_requests
                  WHERE status = 'expired' AND expired_at <= expires_at`,
		},
		{
			Name: "O4_average_consistent",
			SQL: `SELECT provider_id, average FROM provider_ratings
                  WHERE (total_reviews = 0 AND average <> 0)
                     OR (total_reviews > 0 AND abs(average - round(
                            ((stars_1 + 2*stars_2 + 3*stars_3 + 4*stars_4 + 5*stars_5)::numeric
                             / total_reviews), 1)) > 0.001)`,
		},
		{
			Name: "O5_completed_rows_stamped",
			SQL: `SELECT id FROM service_requests
                  WHERE status = 'completed' AND (rating IS NULL OR confirmed_at IS NULL OR marked_complete_at IS NULL)`,
		},
		{
			Name: "O6_terminal_stamps_exclusive",
			SQL: `SELECT id FROM service_requests
                  WHERE num_nonnulls(rejected_at, expired_at, cancelled_at, accepted_at) > 1`,
		},
		{
			Name: "O7_delete_guard_present",
			SQL: `SELECT 'missing_no_delete_trigger' AS detail
                  WHERE NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'no_delete_service_requests')`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row
// text), or an empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
