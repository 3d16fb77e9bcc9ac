package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/surveyplot/internal/core/domain"
)

var errNoPlotStorage = errors.New("plot storage is not available")

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	quadrantType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Quadrant",
		Fields: graphql.Fields{
			"ns":      &graphql.Field{Type: graphql.String},
			"degrees": &graphql.Field{Type: graphql.Int},
			"minutes": &graphql.Field{Type: graphql.Int},
			"ew":      &graphql.Field{Type: graphql.String},
		},
	})

	bearingType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bearing",
		Fields: graphql.Fields{
			"azimuth":  &graphql.Field{Type: graphql.Float},
			"bearing":  &graphql.Field{Type: graphql.String},
			"compact":  &graphql.Field{Type: graphql.String},
			"quadrant": &graphql.Field{Type: quadrantType},
		},
	})

	geodesicType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Geodesic",
		Fields: graphql.Fields{
			"distance_meters": &graphql.Field{Type: graphql.Float},
			"azimuth":         &graphql.Field{Type: graphql.Float},
			"bearing":         &graphql.Field{Type: graphql.String},
		},
	})

	plotType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Plot",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.String},
			"name":        &graphql.Field{Type: graphql.String},
			"source_name": &graphql.Field{Type: graphql.String},
			"created_at":  &graphql.Field{Type: graphql.DateTime},
			"tags": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return p.Source.(*domain.Plot).Tags(), nil
				},
			},
			"segment_count": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return len(p.Source.(*domain.Plot).Segments), nil
				},
			},
			"layer_count": &graphql.Field{
				Type: graphql.Int,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return len(p.Source.(*domain.Plot).ImportedRings), nil
				},
			},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"parseBearing": &graphql.Field{
				Type:        bearingType,
				Description: "Parse a quadrant bearing such as \"N 45° 30' E\"",
				Args: graphql.FieldConfigArgument{
					"text": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Survey.ParseBearing(p.Args["text"].(string))
				},
			},
			"formatBearing": &graphql.Field{
				Type:        bearingType,
				Description: "Canonical quadrant bearing of an azimuth in degrees",
				Args: graphql.FieldConfigArgument{
					"azimuth": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Survey.FormatBearing(p.Args["azimuth"].(float64))
				},
			},
			"geodesic": &graphql.Field{
				Type:        geodesicType,
				Description: "Great-circle distance and initial bearing between two points",
				Args: graphql.FieldConfigArgument{
					"fromLat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"fromLon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"toLon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					from := domain.GeoPoint{Lat: p.Args["fromLat"].(float64), Lon: p.Args["fromLon"].(float64)}
					to := domain.GeoPoint{Lat: p.Args["toLat"].(float64), Lon: p.Args["toLon"].(float64)}
					return deps.Survey.Geodesic(from, to)
				},
			},
			"plot": &graphql.Field{
				Type:        plotType,
				Description: "Get a saved plot by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Plots == nil {
						return nil, errNoPlotStorage
					}
					loaded, err := deps.Plots.Get(p.Context, p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return loaded.Plot, nil
				},
			},
			"plots": &graphql.Field{
				Type:        graphql.NewList(plotType),
				Description: "Saved plots, newest first",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: defaultLimit},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.Plots == nil {
						return nil, errNoPlotStorage
					}
					plots, _, err := deps.Plots.List(p.Context, p.Args["limit"].(int), p.Args["offset"].(int))
					if err != nil {
						return nil, err
					}
					out := make([]*domain.Plot, len(plots))
					for i := range plots {
						out[i] = &plots[i]
					}
					return out, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
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
