package registry_listener

import (
	"sync"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/pkg/sortedx"
	"github.com/samber/lo"
)

// Cache is the client side tree of Application -> Worker -> Endpoint and the
// fitable relations. Each repository locks itself, writers are serialized
// so that a diff is applied as a whole.
type Cache struct {
	applications        *sortedx.Repo[*Application]
	fitables            *sortedx.Repo[*Fitable]
	applicationFitables *sortedx.Repo[relation]
	fitableApplications *sortedx.Repo[relation]
	unavailable         *sortedx.Repo[*UnavailableEndpoint]

	writeMu sync.Mutex
}

// Diff summarizes an Apply call.
type Diff struct {
	Linked   int
	Unlinked int
}

func NewCache() *Cache {
	return &Cache{
		applications: sortedx.New(compareApplications, func(key *Application) *Application {
			return newApplication(key.Application)
		}),
		fitables: sortedx.New(compareFitables, func(key *Fitable) *Fitable {
			return &Fitable{Fitable: key.Fitable}
		}),
		applicationFitables: sortedx.New(compareApplicationFitable, nil),
		fitableApplications: sortedx.New(compareFitableApplication, nil),
		unavailable:         sortedx.New(compareUnavailable, nil),
	}
}

// AddFitables registers dependencies and returns those that were unknown.
func (c *Cache) AddFitables(metas ...model.FitableMeta) []model.Fitable {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	added := []model.Fitable{}
	for _, meta := range metas {
		_, known := c.fitables.Get(&Fitable{Fitable: meta.Fitable}, false)
		f, _ := c.fitables.Get(&Fitable{Fitable: meta.Fitable}, true)
		f.setMeta(meta.Aliases, meta.Tags)
		if !known {
			added = append(added, meta.Fitable)
		}
	}
	return added
}

// Fitables lists every dependency in identity order.
func (c *Cache) Fitables() []model.Fitable {
	return lo.Map(c.fitables.List(), func(f *Fitable, _ int) model.Fitable {
		return f.Fitable
	})
}

// FitablesOf lists the cached fitables of one generic.
func (c *Cache) FitablesOf(genericID string) []*Fitable {
	return c.fitables.Scan(&Fitable{Fitable: model.Fitable{GenericID: genericID}}, func(f *Fitable) bool {
		return f.GenericID == genericID
	})
}

func (c *Cache) Fitable(f model.Fitable) (*Fitable, bool) {
	return c.fitables.Get(&Fitable{Fitable: f}, false)
}

func (c *Cache) Applications() []*Application {
	return c.applications.List()
}

// Apply merges a registry answer. The application set of every listed
// fitable is replaced, applications left without fitables are dropped.
func (c *Cache) Apply(instances []model.FitableInstance) Diff {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	diff := Diff{}
	for _, fi := range instances {
		f, _ := c.fitables.Get(&Fitable{Fitable: fi.Fitable}, true)
		if fi.Aliases != nil || fi.Tags != nil {
			f.setMeta(fi.Aliases, fi.Tags)
		}

		reported := sortedx.New(compareFitableApplication, nil)
		for _, ai := range fi.ApplicationInstances {
			app, _ := c.applications.Get(&Application{Application: ai.Application}, true)
			app.update(ai)

			rel := relation{fitable: fi.Fitable, app: ai.Application}
			reported.Get(rel, true)
			if _, found := c.fitableApplications.Get(rel, false); !found {
				diff.Linked++
			}
			c.fitableApplications.Get(rel, true)
			c.applicationFitables.Get(rel, true)
		}

		for _, rel := range c.applicationsOf(fi.Fitable) {
			if _, found := reported.Get(rel, false); found {
				continue
			}
			c.unlink(rel)
			diff.Unlinked++
		}
	}
	return diff
}

// Forget drops a dependency together with its relations and unavailable
// entries.
func (c *Cache) Forget(f model.Fitable) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	for _, rel := range c.applicationsOf(f) {
		c.unlink(rel)
	}
	c.unavailable.RemoveFunc(func(ue *UnavailableEndpoint) bool {
		return ue.Fitable == f
	})
	c.fitables.Remove(&Fitable{Fitable: f})
}

func (c *Cache) applicationsOf(f model.Fitable) []relation {
	return c.fitableApplications.Scan(relation{fitable: f}, func(rel relation) bool {
		return rel.fitable == f
	})
}

func (c *Cache) fitablesOf(app model.Application) []relation {
	return c.applicationFitables.Scan(relation{app: app}, func(rel relation) bool {
		return rel.app.Compare(app) == 0
	})
}

func (c *Cache) unlink(rel relation) {
	c.fitableApplications.Remove(rel)
	c.applicationFitables.Remove(rel)
	if len(c.fitablesOf(rel.app)) == 0 {
		c.applications.Remove(&Application{Application: rel.app})
	}
}

// Targets lists the available addresses of f.
func (c *Cache) Targets(f model.Fitable) []model.Target {
	cached, found := c.Fitable(f)
	if !found {
		return nil
	}
	aliases := cached.Aliases()

	res := []model.Target{}
	for _, rel := range c.applicationsOf(f) {
		app, found := c.applications.Get(&Application{Application: rel.app}, false)
		if !found {
			continue
		}
		formats := app.Formats()
		for _, w := range app.Workers() {
			for _, ep := range w.Endpoints() {
				key := UnavailableEndpoint{Fitable: f, WorkerID: w.ID, Endpoint: ep.EndpointDetail}
				if _, unavailable := c.unavailable.Get(&key, false); unavailable {
					continue
				}
				res = append(res, model.Target{
					Fitable: f,
					Aliases: aliases,
					Address: model.Address{
						Host:        ep.Host,
						Port:        ep.Port,
						WorkerID:    w.ID,
						Protocol:    ep.Protocol,
						Formats:     formats,
						Environment: w.Environment,
						Extensions:  w.Extensions,
					},
				})
			}
		}
	}
	return res
}

// MarkUnavailable hides the target's endpoint from f for expiration cycles.
// Marking an already hidden endpoint restarts its countdown.
func (c *Cache) MarkUnavailable(target model.Target, expiration int) {
	ue, _ := c.unavailable.Get(NewUnavailableEndpoint(
		target.Fitable,
		model.EndpointDetail{Host: target.Host, Port: target.Port, Protocol: target.Protocol},
		target.WorkerID,
		expiration,
	), true)
	ue.reset(expiration)
}

func (c *Cache) Unavailable() []*UnavailableEndpoint {
	return c.unavailable.List()
}

// ExpireUnavailable counts every unavailable entry one cycle down and drops
// those that ran out. It returns the number of dropped entries.
func (c *Cache) ExpireUnavailable() int {
	return len(c.unavailable.RemoveFunc(func(ue *UnavailableEndpoint) bool {
		return ue.TryExpire()
	}))
}
