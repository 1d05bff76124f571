package catalog

import "testing"

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	cases := []struct {
		id     string
		points int
	}{
		{"twitter_follow", 50},
		{"twitter_post", 100},
		{"telegram_join", 75},
	}
	for _, tc := range cases {
		task, ok := c.Get(tc.id)
		if !ok {
			t.Fatalf("task %q missing from default catalog", tc.id)
		}
		if task.Points != tc.points {
			t.Fatalf("task %q worth %d points, want %d", tc.id, task.Points, tc.points)
		}
	}
	if _, ok := c.Get("no_such_task"); ok {
		t.Fatal("unknown id must not resolve")
	}
	list := c.List()
	if len(list) != 3 || list[0].ID != "twitter_follow" {
		t.Fatalf("List() order changed: %+v", list)
	}
}
