package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/routemap/internal/core/domain"
	"github.com/samirrijal/routemap/internal/core/overlay"
	"github.com/samirrijal/routemap/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	pointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Point",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	pairType := func(name string, t graphql.Output) *graphql.Object {
		return graphql.NewObject(graphql.ObjectConfig{
			Name: name,
			Fields: graphql.Fields{
				"lat": &graphql.Field{Type: t},
				"lng": &graphql.Field{Type: t},
			},
		})
	}

	notationsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Notations",
		Fields: graphql.Fields{
			"dec": &graphql.Field{Type: pairType("Dec", graphql.String)},
			"deg": &graphql.Field{Type: pairType("Deg", graphql.String)},
			"mms": &graphql.Field{Type: pairType("Mms", graphql.Float)},
		},
	})

	overlayType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Overlay",
		Fields: graphql.Fields{
			"id":       &graphql.Field{Type: graphql.String},
			"color":    &graphql.Field{Type: graphql.String},
			"length_m": &graphql.Field{Type: graphql.Float},
			"points":   &graphql.Field{Type: graphql.NewList(pointType)},
		},
	})

	channelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ChannelState",
		Fields: graphql.Fields{
			"channel":  &graphql.Field{Type: graphql.String},
			"selected": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"overlays": &graphql.Field{Type: graphql.NewList(overlayType)},
		},
	})

	surfaceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Surface",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"provider":   &graphql.Field{Type: graphql.String},
			"created_at": &graphql.Field{Type: graphql.String},
			"channels":   &graphql.Field{Type: graphql.NewList(channelType)},
		},
	})

	parseType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ParsedPayload",
		Fields: graphql.Fields{
			"kind":     &graphql.Field{Type: graphql.String},
			"kept":     &graphql.Field{Type: graphql.Int},
			"dropped":  &graphql.Field{Type: graphql.Int},
			"length_m": &graphql.Field{Type: graphql.Float},
			"points":   &graphql.Field{Type: graphql.NewList(pointType)},
		},
	})

	planType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Plan",
		Fields: graphql.Fields{
			"channel":    &graphql.Field{Type: graphql.String},
			"generation": &graphql.Field{Type: graphql.Int},
			"stale":      &graphql.Field{Type: graphql.Boolean},
			"drawn":      &graphql.Field{Type: graphql.NewList(graphql.String)},
			"removed":    &graphql.Field{Type: graphql.NewList(graphql.String)},
			"failed":     &graphql.Field{Type: graphql.NewList(graphql.String)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"convertDec": &graphql.Field{
				Type:        notationsType,
				Description: "Express a decimal-degree coordinate in every notation",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					n, err := deps.Conversions.FromDec(domain.Coordinate{
						Lat: p.Args["lat"].(float64),
						Lng: p.Args["lng"].(float64),
					})
					if err != nil {
						return nil, err
					}
					return notationsMap(n), nil
				},
			},
			"convertDeg": &graphql.Field{
				Type:        notationsType,
				Description: `Parse "D M S" strings and express them in every notation`,
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					n, err := deps.Conversions.FromDeg(p.Args["lat"].(string), p.Args["lng"].(string))
					if err != nil {
						return nil, err
					}
					return notationsMap(n), nil
				},
			},
			"convertMms": &graphql.Field{
				Type:        notationsType,
				Description: "Express a fixed-point MMS coordinate in every notation",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
					"lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return notationsMap(deps.Conversions.FromMms(domain.MmsNotation{
						Lat: int64(p.Args["lat"].(int)),
						Lng: int64(p.Args["lng"].(int)),
					})), nil
				},
			},
			"parsePayload": &graphql.Field{
				Type:        parseType,
				Description: "Normalize a raw coordinate payload",
				Args: graphql.FieldConfigArgument{
					"raw": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					r := parseBody([]byte(p.Args["raw"].(string)))
					return map[string]interface{}{
						"kind":     string(r.Kind),
						"kept":     r.Kept,
						"dropped":  r.Dropped,
						"length_m": r.LengthM,
						"points":   pointsList(r.Points),
					}, nil
				},
			},
			"surfaces": &graphql.Field{
				Type:        graphql.NewList(surfaceType),
				Description: "List every surface without channel state",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out []map[string]interface{}
					for _, info := range deps.Surfaces.List() {
						out = append(out, surfaceMap(info, nil))
					}
					return out, nil
				},
			},
			"surface": &graphql.Field{
				Type:        surfaceType,
				Description: "Get the reconciled state of a surface",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					view, err := deps.Surfaces.Get(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return surfaceMap(view.SurfaceInfo, view.Channels), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"select": &graphql.Field{
				Type:        planType,
				Description: "Replace the selection of one channel",
				Args: graphql.FieldConfigArgument{
					"surface":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"channel":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"file_ids": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.String))},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var items []domain.SelectionItem
					for _, v := range p.Args["file_ids"].([]interface{}) {
						if id, ok := v.(string); ok {
							items = append(items, domain.SelectionItem{FileID: id})
						}
					}
					plan, err := deps.Surfaces.Select(p.Context,
						p.Args["surface"].(string), domain.Channel(p.Args["channel"].(string)), items)
					if err != nil {
						return nil, err
					}
					return planMap(plan), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

func notationsMap(n domain.Notations) map[string]interface{} {
	return map[string]interface{}{
		"dec": map[string]interface{}{"lat": n.Dec.Lat, "lng": n.Dec.Lng},
		"deg": map[string]interface{}{"lat": n.Deg.Lat, "lng": n.Deg.Lng},
		"mms": map[string]interface{}{"lat": float64(n.Mms.Lat), "lng": float64(n.Mms.Lng)},
	}
}

func pointsList(points []domain.Coordinate) []map[string]interface{} {
	out := make([]map[string]interface{}, len(points))
	for i, p := range points {
		out[i] = map[string]interface{}{"lat": p.Lat, "lng": p.Lng}
	}
	return out
}

func surfaceMap(info usecases.SurfaceInfo, channels []overlay.ChannelSnapshot) map[string]interface{} {
	var chs []map[string]interface{}
	for _, cs := range channels {
		var overlays []map[string]interface{}
		for _, ov := range cs.Overlays {
			overlays = append(overlays, map[string]interface{}{
				"id":       ov.ID,
				"color":    string(ov.Color),
				"length_m": ov.LengthM,
				"points":   pointsList(ov.Points),
			})
		}
		chs = append(chs, map[string]interface{}{
			"channel":  string(cs.Channel),
			"selected": cs.Selected,
			"overlays": overlays,
		})
	}
	return map[string]interface{}{
		"id":         info.ID,
		"provider":   string(info.Provider),
		"created_at": info.CreatedAt.Format(time.RFC3339),
		"channels":   chs,
	}
}

func planMap(plan domain.Plan) map[string]interface{} {
	return map[string]interface{}{
		"channel":    string(plan.Channel),
		"generation": int(plan.Generation),
		"stale":      plan.Stale,
		"drawn":      plan.Drawn(),
		"removed":    plan.Removed(),
		"failed":     plan.Failed,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
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
