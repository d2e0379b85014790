package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Fixtures inserts blog rows directly, bypassing models, so tests can set
// columns the models do not declare.
type Fixtures struct {
	db  *sql.DB
	ctx context.Context
}

// NewFixtures creates a new Fixtures instance.
func NewFixtures(ctx context.Context, db *sql.DB) *Fixtures {
	return &Fixtures{db: db, ctx: ctx}
}

// CreateUser inserts a user and returns its id.
func (f *Fixtures) CreateUser(name string, deleted bool) (int64, error) {
	var id int64
	err := f.db.QueryRowContext(f.ctx,
		"INSERT INTO users (name, deleted) VALUES ($1, $2) RETURNING id", name, deleted).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert user %s: %w", name, err)
	}
	return id, nil
}

// CreateUsers inserts n users named prefix_0..prefix_n-1 and returns
// their ids in order.
func (f *Fixtures) CreateUsers(prefix string, n int) ([]int64, error) {
	if n == 0 {
		return nil, nil
	}

	// Use batch inserts (1000 rows per statement)
	const batchSize = 1000
	ids := make([]int64, 0, n)
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)

		var b strings.Builder
		b.WriteString("INSERT INTO users (name) VALUES ")
		args := make([]any, 0, end-start)
		for i := start; i < end; i++ {
			if i > start {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "($%d)", i-start+1)
			args = append(args, fmt.Sprintf("%s_%d", prefix, i))
		}
		b.WriteString(" RETURNING id")

		rows, err := f.db.QueryContext(f.ctx, b.String(), args...)
		if err != nil {
			return nil, fmt.Errorf("insert users batch %d-%d: %w", start, end, err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				_ = rows.Close()
				return nil, err
			}
			ids = append(ids, id)
		}
		if err := rows.Close(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// CreatePost inserts a post and returns its id.
func (f *Fixtures) CreatePost(userID int64, title string, published bool) (int64, error) {
	var id int64
	err := f.db.QueryRowContext(f.ctx,
		"INSERT INTO posts (user_id, title, published) VALUES ($1, $2, $3) RETURNING id",
		userID, title, published).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert post %s: %w", title, err)
	}
	return id, nil
}

// CreateComment inserts a comment and returns its id.
func (f *Fixtures) CreateComment(postID int64, body string, hidden bool) (int64, error) {
	var id int64
	err := f.db.QueryRowContext(f.ctx,
		"INSERT INTO comments (post_id, body, hidden) VALUES ($1, $2, $3) RETURNING id",
		postID, body, hidden).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert comment: %w", err)
	}
	return id, nil
}

// TagPost links a post to the named tag, creating the tag if needed.
func (f *Fixtures) TagPost(postID int64, tag, kind string) error {
	var tagID int64
	err := f.db.QueryRowContext(f.ctx,
		"INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name RETURNING id",
		tag).Scan(&tagID)
	if err != nil {
		return fmt.Errorf("insert tag %s: %w", tag, err)
	}
	_, err = f.db.ExecContext(f.ctx,
		"INSERT INTO post_tags (post_id, tag_id, kind) VALUES ($1, $2, $3)", postID, tagID, kind)
	if err != nil {
		return fmt.Errorf("tag post %d: %w", postID, err)
	}
	return nil
}
