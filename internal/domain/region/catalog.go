package region

import (
	"encoding/json"
	"os"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	apperrors "github.com/lokaskor/lokaskor/pkg/errors"
)

// catalogFile is the on-disk JSON shape of the region catalog.
type catalogFile struct {
	Provinces []Province `json:"provinces"`
}

// Catalog is the lookup service over the administrative hierarchy.  The
// underlying data is swapped atomically on reload, so readers never observe a
// partially loaded catalog.
type Catalog struct {
	path    string
	log     logging.Logger
	data    atomic.Pointer[catalogFile]
	watcher *fsnotify.Watcher
}

// NewCatalog loads the catalog from path.  Returns an error if the file is
// missing or malformed; a catalog with zero provinces is rejected.
func NewCatalog(path string, log logging.Logger) (*Catalog, error) {
	c := &Catalog{path: path, log: log.Named("regions")}
	if err := c.reload(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) reload() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeNotFound, "region catalog unreadable").
			WithDetail(c.path)
	}

	var cf catalogFile
	if err := json.Unmarshal(raw, &cf); err != nil {
		return apperrors.Wrap(err, apperrors.CodeSerialization, "region catalog malformed").
			WithDetail(c.path)
	}
	if len(cf.Provinces) == 0 {
		return apperrors.New(apperrors.CodeValidation, "region catalog has no provinces").
			WithDetail(c.path)
	}

	c.data.Store(&cf)
	c.log.Info("region catalog loaded",
		logging.String("path", c.path),
		logging.Int("provinces", len(cf.Provinces)))
	return nil
}

// Watch reloads the catalog whenever the file changes on disk.  A change that
// fails to parse is logged and skipped; the previous catalog stays active.
// Call Close to stop watching.
func (c *Catalog) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "region catalog watcher failed")
	}
	if err := w.Add(c.path); err != nil {
		w.Close()
		return apperrors.Wrap(err, apperrors.CodeInternal, "region catalog watch failed").
			WithDetail(c.path)
	}
	c.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.reload(); err != nil {
					c.log.Warn("region catalog reload skipped", logging.Err(err))
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.log.Warn("region catalog watcher error", logging.Err(err))
			}
		}
	}()
	return nil
}

// Close stops the file watcher, if any.
func (c *Catalog) Close() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// Provinces returns all province names.
func (c *Catalog) Provinces() []string {
	cf := c.data.Load()
	out := make([]string, 0, len(cf.Provinces))
	for _, p := range cf.Provinces {
		out = append(out, p.Name)
	}
	return out
}

// Districts returns the district names of a province, or an empty slice for
// an unknown province.
func (c *Catalog) Districts(province string) []string {
	p, ok := c.province(province)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(p.Districts))
	for _, d := range p.Districts {
		out = append(out, d.Name)
	}
	return out
}

// Neighborhoods returns the neighborhood names under province/district.
func (c *Catalog) Neighborhoods(province, district string) []string {
	d, ok := c.district(province, district)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(d.Neighborhoods))
	for _, n := range d.Neighborhoods {
		out = append(out, n.Name)
	}
	return out
}

// Resolve looks up the neighborhood a complete path points at.
func (c *Catalog) Resolve(p Path) (Neighborhood, error) {
	if !p.Complete() {
		return Neighborhood{}, apperrors.Validation("region selection incomplete").
			WithDetail(p.String())
	}
	d, ok := c.district(p.Province, p.District)
	if !ok {
		return Neighborhood{}, apperrors.NotFound("unknown region").WithDetail(p.String())
	}
	for _, n := range d.Neighborhoods {
		if n.Name == p.Neighborhood {
			return n, nil
		}
	}
	return Neighborhood{}, apperrors.NotFound("unknown neighborhood").WithDetail(p.String())
}

// ValidatePath checks that every set level of a (possibly partial) path
// exists in the catalog and that no level is set without its parent.
func (c *Catalog) ValidatePath(p Path) error {
	if !p.Consistent() {
		return apperrors.Validation("region selection out of order").WithDetail(p.String())
	}
	if p.Province == "" {
		return nil
	}
	prov, ok := c.province(p.Province)
	if !ok {
		return apperrors.Validation("unknown province").WithDetail(p.Province)
	}
	if p.District == "" {
		return nil
	}
	var dist *District
	for i := range prov.Districts {
		if prov.Districts[i].Name == p.District {
			dist = &prov.Districts[i]
			break
		}
	}
	if dist == nil {
		return apperrors.Validation("unknown district").WithDetail(p.District)
	}
	if p.Neighborhood == "" {
		return nil
	}
	for _, n := range dist.Neighborhoods {
		if n.Name == p.Neighborhood {
			return nil
		}
	}
	return apperrors.Validation("unknown neighborhood").WithDetail(p.Neighborhood)
}

func (c *Catalog) province(name string) (Province, bool) {
	for _, p := range c.data.Load().Provinces {
		if p.Name == name {
			return p, true
		}
	}
	return Province{}, false
}

func (c *Catalog) district(province, district string) (District, bool) {
	p, ok := c.province(province)
	if !ok {
		return District{}, false
	}
	for _, d := range p.Districts {
		if d.Name == district {
			return d, true
		}
	}
	return District{}, false
}
