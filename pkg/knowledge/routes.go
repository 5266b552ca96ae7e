package knowledge

import (
	"context"
	"fmt"

	"github.com/barekit/rihlat/pkg/errs"
	"gorm.io/gorm"
)

type routeRow struct {
	RouteID        string
	RouteShortName string
	RouteLongName  string
}

// RouteDocuments reads the GTFS routes table of db into one document per route.
func RouteDocuments(ctx context.Context, database string, db *gorm.DB) ([]Document, error) {
	var rows []routeRow
	err := db.WithContext(ctx).
		Table("routes").
		Select("route_id, route_short_name, route_long_name").
		Order("route_id").
		Scan(&rows).Error
	if err != nil {
		return nil, errs.Wrap(errs.KindDatabase, "knowledge", fmt.Errorf("failed to read routes of %s: %w", database, err))
	}

	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, Document{
			ID:      database + ":" + r.RouteID,
			Content: fmt.Sprintf("Route %s (route_short_name) is %s (route_long_name)", r.RouteShortName, r.RouteLongName),
			Metadata: map[string]any{
				"database":         database,
				"route_id":         r.RouteID,
				"route_short_name": r.RouteShortName,
				"route_long_name":  r.RouteLongName,
			},
		})
	}
	return docs, nil
}
