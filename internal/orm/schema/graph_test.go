package schema

import (
	"errors"
	"strings"
	"testing"
)

func idColumn() *Column {
	return NewColumn("id", Of(TypeInteger)).Primary()
}

func names(els []Element) []string {
	out := make([]string, len(els))
	for i, el := range els {
		out[i] = el.ObjectName()
	}
	return out
}

func TestDependencyGraph(t *testing.T) {
	t.Run("simple dependency chain", func(t *testing.T) {
		// comments -> posts -> users, inserted in reverse
		users := NewTable("users", idColumn())
		posts := NewTable("posts", idColumn(), NewColumn("user_id", Of(TypeInteger)))
		posts.AddForeignKey("fk_posts_user", []string{"user_id"}, users, []string{"id"})
		comments := NewTable("comments", idColumn(), NewColumn("post_id", Of(TypeInteger)))
		comments.AddForeignKey("fk_comments_post", []string{"post_id"}, posts, []string{"id"})

		graph := NewDependencyGraph([]Element{comments, posts, users})

		if cycles := graph.DetectCycles(); len(cycles) != 0 {
			t.Fatalf("unexpected cycles: %v", cycles)
		}

		sorted, err := graph.TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort() error = %v", err)
		}
		got := strings.Join(names(sorted), ",")
		if got != "users,posts,comments" {
			t.Errorf("order = %s, want users,posts,comments", got)
		}

		dependents := graph.Dependents(users)
		if len(dependents) != 1 || dependents[0] != posts {
			t.Errorf("Dependents(users) = %v, want [posts]", names(dependents))
		}
	})

	t.Run("independent elements keep insertion order", func(t *testing.T) {
		a := NewTable("a", idColumn())
		b := NewTable("b", idColumn())
		c := NewTable("c", idColumn())

		sorted, err := NewDependencyGraph([]Element{c, a, b}).TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort() error = %v", err)
		}
		if got := strings.Join(names(sorted), ","); got != "c,a,b" {
			t.Errorf("order = %s, want c,a,b", got)
		}
	})

	t.Run("self reference is not a dependency", func(t *testing.T) {
		nodes := NewTable("nodes", idColumn(), NewColumn("parent_id", Of(TypeInteger)))
		nodes.AddForeignKey("fk_parent", []string{"parent_id"}, nodes, []string{"id"})

		sorted, err := NewDependencyGraph([]Element{nodes}).TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort() error = %v", err)
		}
		if len(sorted) != 1 {
			t.Errorf("sorted = %v", names(sorted))
		}
	})

	t.Run("cycle", func(t *testing.T) {
		a := NewTable("a", idColumn(), NewColumn("b_id", Of(TypeInteger)))
		b := NewTable("b", idColumn(), NewColumn("a_id", Of(TypeInteger)))
		a.AddForeignKey("fk_a_b", []string{"b_id"}, b, []string{"id"})
		b.AddForeignKey("fk_b_a", []string{"a_id"}, a, []string{"id"})

		graph := NewDependencyGraph([]Element{a, b})
		if cycles := graph.DetectCycles(); len(cycles) != 1 {
			t.Fatalf("expected 1 cycle, got %v", cycles)
		}

		_, err := graph.TopologicalSort()
		var cycleErr *CycleError
		if !errors.As(err, &cycleErr) {
			t.Fatalf("expected *CycleError, got %v", err)
		}
		if !strings.Contains(err.Error(), "Cycle 1: a -> b -> a") {
			t.Errorf("unexpected message: %s", err)
		}
	})

	t.Run("use alter breaks cycle", func(t *testing.T) {
		a := NewTable("a", idColumn(), NewColumn("b_id", Of(TypeInteger)))
		b := NewTable("b", idColumn(), NewColumn("a_id", Of(TypeInteger)))
		a.AddForeignKey("fk_a_b", []string{"b_id"}, b, []string{"id"})
		b.AddForeignKey("fk_b_a", []string{"a_id"}, a, []string{"id"}).UseAlter = true

		sorted, err := NewDependencyGraph([]Element{a, b}).TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort() error = %v", err)
		}
		if got := strings.Join(names(sorted), ","); got != "b,a" {
			t.Errorf("order = %s, want b,a", got)
		}
	})

	t.Run("dependencies outside the node set are ignored", func(t *testing.T) {
		users := NewTable("users", idColumn())
		posts := NewTable("posts", idColumn(), NewColumn("user_id", Of(TypeInteger)))
		posts.AddForeignKey("", []string{"user_id"}, users, []string{"id"})

		sorted, err := NewDependencyGraph([]Element{posts}).TopologicalSort()
		if err != nil {
			t.Fatalf("TopologicalSort() error = %v", err)
		}
		if len(sorted) != 1 || sorted[0] != posts {
			t.Errorf("sorted = %v", names(sorted))
		}
	})
}
