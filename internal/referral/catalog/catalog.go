package catalog

import "github.com/cryptavpn-crypto/Crypta-referal/internal/referral/types"

// Catalog is the static registry of reward tasks. Definitions are fixed
// for the lifetime of the process; point values earned by users are
// snapshotted on completion, so editing the catalog never rewrites history.
type Catalog struct {
	tasks []types.Task
	byID  map[string]types.Task
}

func New(tasks []types.Task) *Catalog {
	c := &Catalog{
		tasks: append([]types.Task(nil), tasks...),
		byID:  make(map[string]types.Task, len(tasks)),
	}
	for _, t := range tasks {
		c.byID[t.ID] = t
	}
	return c
}

// Default returns the production task set.
func Default() *Catalog {
	return New([]types.Task{
		{ID: "twitter_follow", Title: "Follow CRYPTA VPN on X (Twitter)", Points: 50},
		{ID: "twitter_post", Title: "Post and tag us on X", Points: 100},
		{ID: "telegram_join", Title: "Join Telegram Channel", Points: 75},
	})
}

func (c *Catalog) Get(id string) (types.Task, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// List returns tasks in their seeded order.
func (c *Catalog) List() []types.Task {
	return append([]types.Task(nil), c.tasks...)
}
