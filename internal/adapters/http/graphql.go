package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/turbinemap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to the turbine service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	turbineFields := graphql.Fields{
		"id":                 &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"location_name":      &graphql.Field{Type: graphql.String},
		"capacity_mw":        &graphql.Field{Type: graphql.Float},
		"lon":                &graphql.Field{Type: graphql.Float},
		"lat":                &graphql.Field{Type: graphql.Float},
		"households_powered": &graphql.Field{Type: graphql.Int},
	}

	turbineType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Turbine",
		Fields: turbineFields,
	})

	nearbyFields := graphql.Fields{"distance": &graphql.Field{Type: graphql.Float}}
	for name, f := range turbineFields {
		nearbyFields[name] = &graphql.Field{Type: f.Type}
	}
	nearbyType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "NearbyTurbine",
		Fields: nearbyFields,
	})

	boxType := graphql.NewObject(graphql.ObjectConfig{
		Name: "BoundingBox",
		Fields: graphql.Fields{
			"min_lon": &graphql.Field{Type: graphql.Float},
			"min_lat": &graphql.Field{Type: graphql.Float},
			"max_lon": &graphql.Field{Type: graphql.Float},
			"max_lat": &graphql.Field{Type: graphql.Float},
		},
	})

	statsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DatasetStats",
		Fields: graphql.Fields{
			"count":             &graphql.Field{Type: graphql.Int},
			"total_capacity_mw": &graphql.Field{Type: graphql.Float},
			"extent":            &graphql.Field{Type: boxType},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"turbinesInBox": &graphql.Field{
				Type:        graphql.NewList(turbineType),
				Description: "Turbines inside a bounding box, ordered by id",
				Args: graphql.FieldConfigArgument{
					"minLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"minLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"maxLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"maxLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					box := domain.BoundingBox{
						MinLon: p.Args["minLon"].(float64),
						MinLat: p.Args["minLat"].(float64),
						MaxLon: p.Args["maxLon"].(float64),
						MaxLat: p.Args["maxLat"].(float64),
					}
					turbines, err := deps.Turbines.InBoundingBox(p.Context, box, p.Args["limit"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(turbines))
					for _, t := range turbines {
						out = append(out, turbineMap(t))
					}
					return out, nil
				},
			},
			"nearestTurbines": &graphql.Field{
				Type:        graphql.NewList(nearbyType),
				Description: "Turbines closest to a point, nearest first",
				Args: graphql.FieldConfigArgument{
					"lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"k":   &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 3},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pt := domain.GeoPoint{Lon: p.Args["lon"].(float64), Lat: p.Args["lat"].(float64)}
					nearby, err := deps.Turbines.Nearest(p.Context, pt, p.Args["k"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(nearby))
					for _, n := range nearby {
						m := turbineMap(n.Turbine)
						m["distance"] = n.Distance
						out = append(out, m)
					}
					return out, nil
				},
			},
			"datasetStats": &graphql.Field{
				Type:        statsType,
				Description: "Dataset summary",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					st, err := deps.Turbines.Stats(p.Context)
					if err != nil {
						return nil, err
					}
					return map[string]interface{}{
						"count":             st.Count,
						"total_capacity_mw": st.TotalCapacityMW,
						"extent": map[string]interface{}{
							"min_lon": st.Extent.MinLon,
							"min_lat": st.Extent.MinLat,
							"max_lon": st.Extent.MaxLon,
							"max_lat": st.Extent.MaxLat,
						},
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func turbineMap(t domain.Turbine) map[string]interface{} {
	return map[string]interface{}{
		"id":                 t.ID,
		"location_name":      t.LocationName,
		"capacity_mw":        t.CapacityMW,
		"lon":                t.Lon,
		"lat":                t.Lat,
		"households_powered": t.HouseholdsPowered(),
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "request body must be JSON with a query field")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
