package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinalize_AppendsLimit(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"SELECT * FROM users LIMIT 200",
		Finalize("SELECT * FROM users", 200),
	)
}

func TestFinalize_RewritesExcessiveLimit(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"SELECT * FROM users LIMIT 200",
		Finalize("SELECT * FROM users LIMIT 5000", 200),
	)
}

func TestFinalize_KeepsLimitWithinCap(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"SELECT * FROM users LIMIT 50",
		Finalize("SELECT * FROM users LIMIT 50", 200),
	)
	assert.Equal(t,
		"SELECT * FROM users LIMIT 200",
		Finalize("SELECT * FROM users LIMIT 200", 200),
	)
}

func TestFinalize_PreservesCase(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"select id from users limit 200",
		Finalize("select id from users limit 9999", 200),
	)
}

func TestFinalize_StripsTrailingTerminator(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"SELECT * FROM users LIMIT 200",
		Finalize("SELECT * FROM users;", 200),
	)
	assert.Equal(t,
		"SELECT * FROM users LIMIT 200",
		Finalize("  SELECT * FROM users LIMIT 5000 ; ", 200),
	)
}

func TestFinalize_Idempotent(t *testing.T) {
	t.Parallel()
	queries := []string{
		"SELECT * FROM users",
		"SELECT * FROM users LIMIT 5000",
		"SELECT * FROM users LIMIT 10",
		"SELECT * FROM users ORDER BY id LIMIT 5000 OFFSET 20",
	}
	for _, q := range queries {
		once := Finalize(q, 200)
		assert.Equal(t, once, Finalize(once, 200), "for %q", q)
	}
}

func TestFinalize_OnlyOutermostLimitCounts(t *testing.T) {
	t.Parallel()
	// The inner LIMIT belongs to the subquery; the outer statement still
	// needs its own cap.
	assert.Equal(t,
		"SELECT * FROM (SELECT * FROM users LIMIT 5000) t LIMIT 200",
		Finalize("SELECT * FROM (SELECT * FROM users LIMIT 5000) t", 200),
	)
	assert.Equal(t,
		"WITH t AS (SELECT * FROM users LIMIT 5000) SELECT * FROM t LIMIT 200",
		Finalize("WITH t AS (SELECT * FROM users LIMIT 5000) SELECT * FROM t", 200),
	)
}

func TestFinalize_LimitInsideStringLiteral(t *testing.T) {
	t.Parallel()
	// The words "LIMIT 9999" in a literal must not satisfy the cap.
	assert.Equal(t,
		"SELECT 'no LIMIT 9999 here' AS note FROM users LIMIT 200",
		Finalize("SELECT 'no LIMIT 9999 here' AS note FROM users", 200),
	)
}

func TestFinalize_RewriteKeepsSurroundingText(t *testing.T) {
	t.Parallel()
	assert.Equal(t,
		"SELECT id FROM users ORDER BY id LIMIT 200 OFFSET 40",
		Finalize("SELECT id FROM users ORDER BY id LIMIT 5000 OFFSET 40", 200),
	)
}

func TestFinalize_NonConstantLimitLeftAlone(t *testing.T) {
	t.Parallel()
	sql := "SELECT * FROM users LIMIT (SELECT 10)"
	assert.Equal(t, sql, Finalize(sql, 200))
}

func TestFinalize_UnparsableFallsBackToTextRewrite(t *testing.T) {
	t.Parallel()
	// Text that slips past a text-level gate but does not parse still gets
	// a trailing-LIMIT treatment.
	assert.Equal(t,
		"SELECT FROM FROM users LIMIT 200",
		Finalize("SELECT FROM FROM users", 200),
	)
	assert.Equal(t,
		"SELECT FROM FROM users LIMIT 200",
		Finalize("SELECT FROM FROM users LIMIT 9000", 200),
	)
}
