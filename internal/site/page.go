package site

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sogif-site/internal/constants"
)

// Page is every section rendered from one bundle.
type Page struct {
	Hero        Hero        `json:"hero"`
	KeyMetrics  KeyMetrics  `json:"keyMetrics"`
	Performance Performance `json:"performance"`
	Allocation  *Allocation `json:"allocation,omitempty"`
	Invest      Invest      `json:"invest"`
}

// SectionNames lists the sections Build accepts, in page order.
var SectionNames = []string{"hero", "key-metrics", "performance", "allocation", "invest"}

// Build renders a single named section.
func Build(name string, p *constants.Provider) (any, error) {
	switch name {
	case "hero":
		return BuildHero(p)
	case "key-metrics":
		return BuildKeyMetrics(p)
	case "performance":
		return BuildPerformance(p)
	case "allocation":
		return BuildAllocation(p)
	case "invest":
		return BuildInvest(p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}
}

// BuildPage renders all sections concurrently from the same provider.
func BuildPage(ctx context.Context, p *constants.Provider) (Page, error) {
	var page Page
	g, _ := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		page.Hero, err = BuildHero(p)
		return err
	})
	g.Go(func() (err error) {
		page.KeyMetrics, err = BuildKeyMetrics(p)
		return err
	})
	g.Go(func() (err error) {
		page.Performance, err = BuildPerformance(p)
		return err
	})
	g.Go(func() (err error) {
		page.Allocation, err = BuildAllocation(p)
		return err
	})
	g.Go(func() (err error) {
		page.Invest, err = BuildInvest(p)
		return err
	})

	if err := g.Wait(); err != nil {
		return Page{}, err
	}
	return page, nil
}
