// cmd/chargeease/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/codr1/ChargeEase/internal/client"
	"github.com/codr1/ChargeEase/internal/geo"
	"github.com/codr1/ChargeEase/internal/models"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "chargeease",
		Usage: "find and book EV charging stations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Usage:   "API base URL including the prefix",
				Value:   "http://localhost:5000/api/v1",
				EnvVars: []string{"CHARGEEASE_API"},
			},
			&cli.StringFlag{
				Name:    "session",
				Usage:   "session file (defaults to the user config dir)",
				EnvVars: []string{"CHARGEEASE_SESSION"},
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print raw JSON",
			},
		},
		Commands: []*cli.Command{
			loginCommand(),
			signupCommand(),
			{
				Name:  "logout",
				Usage: "end the session and forget stored tokens",
				Action: func(c *cli.Context) error {
					api, err := apiClient(c)
					if err != nil {
						return err
					}
					if err := api.Logout(c.Context); err != nil {
						fmt.Fprintln(c.App.ErrWriter, "warning:", err)
					}
					fmt.Fprintln(c.App.Writer, "Logged out")
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "show the logged in user",
				Action: func(c *cli.Context) error {
					api, err := apiClient(c)
					if err != nil {
						return err
					}
					user, err := api.Profile(c.Context)
					if err != nil {
						return err
					}
					return output(c, user, func(w io.Writer) {
						fmt.Fprintf(w, "%s <%s> (%s)\n", user.Name, user.Email, user.MembershipLevel)
					})
				},
			},
			searchCommand(),
			nearbyCommand(),
			{
				Name:      "station",
				Usage:     "show one station",
				ArgsUsage: "<station-id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("station needs exactly one id")
					}
					api, err := apiClient(c)
					if err != nil {
						return err
					}
					station, err := api.Station(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return output(c, station, func(w io.Writer) { printStation(w, station) })
				},
			},
			bookCommand(),
			{
				Name:  "bookings",
				Usage: "list your bookings",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "Pending, Confirmed, Active, Completed or Cancelled"},
					&cli.BoolFlag{Name: "history", Usage: "completed and cancelled only"},
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "limit", Value: 10},
				},
				Action: func(c *cli.Context) error {
					api, err := apiClient(c)
					if err != nil {
						return err
					}
					var list client.BookingList
					if c.Bool("history") {
						list, err = api.BookingHistory(c.Context, c.Int("page"), c.Int("limit"))
					} else {
						list, err = api.Bookings(c.Context, c.String("status"), c.Int("page"), c.Int("limit"))
					}
					if err != nil {
						return err
					}
					return output(c, list, func(w io.Writer) { printBookings(w, list) })
				},
			},
			{
				Name:      "cancel",
				Usage:     "cancel a booking",
				ArgsUsage: "<booking-id>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("cancel needs exactly one booking id")
					}
					api, err := apiClient(c)
					if err != nil {
						return err
					}
					booking, err := api.CancelBooking(c.Context, c.Args().First())
					if err != nil {
						return err
					}
					return output(c, booking, func(w io.Writer) {
						fmt.Fprintf(w, "Booking %s is %s\n", booking.ID, booking.Status)
					})
				},
			},
		},
	}
}

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "log in and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"CHARGEEASE_PASSWORD"}},
			&cli.BoolFlag{Name: "remember"},
		},
		Action: func(c *cli.Context) error {
			api, err := apiClient(c)
			if err != nil {
				return err
			}
			resp, err := api.Login(c.Context, client.LoginRequest{
				Email:      c.String("email"),
				Password:   c.String("password"),
				RememberMe: c.Bool("remember"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Logged in as %s\n", resp.User.Name)
			return nil
		},
	}
}

func signupCommand() *cli.Command {
	return &cli.Command{
		Name:  "signup",
		Usage: "create an account",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"CHARGEEASE_PASSWORD"}},
			&cli.StringFlag{Name: "phone"},
			&cli.BoolFlag{Name: "agree", Usage: "agree to the terms of service"},
		},
		Action: func(c *cli.Context) error {
			api, err := apiClient(c)
			if err != nil {
				return err
			}
			resp, err := api.Signup(c.Context, client.SignupRequest{
				Name:            c.String("name"),
				Email:           c.String("email"),
				Password:        c.String("password"),
				ConfirmPassword: c.String("password"),
				Phone:           c.String("phone"),
				AgreeToTerms:    c.Bool("agree"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "Welcome, %s\n", resp.User.Name)
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "search stations",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat"},
			&cli.Float64Flag{Name: "lng"},
			&cli.Float64Flag{Name: "radius", Value: 25},
			&cli.StringSliceFlag{Name: "connector"},
			&cli.StringSliceFlag{Name: "speed"},
			&cli.StringSliceFlag{Name: "amenity"},
			&cli.StringSliceFlag{Name: "host"},
			&cli.BoolFlag{Name: "available"},
			&cli.Float64Flag{Name: "min-rating"},
			&cli.Float64Flag{Name: "max-price"},
			&cli.StringFlag{Name: "sort", Usage: "distance, rating or price"},
			&cli.IntFlag{Name: "page", Value: 1},
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: func(c *cli.Context) error {
			api, err := apiClient(c)
			if err != nil {
				return err
			}
			params := client.SearchParams{
				Query:          c.Args().First(),
				ConnectorTypes: c.StringSlice("connector"),
				ChargingSpeeds: c.StringSlice("speed"),
				Amenities:      c.StringSlice("amenity"),
				HostTypes:      c.StringSlice("host"),
				Sort:           c.String("sort"),
				Page:           c.Int("page"),
				Limit:          c.Int("limit"),
			}
			if c.IsSet("lat") || c.IsSet("lng") {
				params.Location = &client.Location{
					Latitude:  c.Float64("lat"),
					Longitude: c.Float64("lng"),
					Radius:    c.Float64("radius"),
				}
			}
			if c.IsSet("available") {
				available := c.Bool("available")
				params.Availability = &available
			}
			if c.IsSet("min-rating") {
				rating := c.Float64("min-rating")
				params.MinRating = &rating
			}
			if c.IsSet("max-price") {
				price := c.Float64("max-price")
				params.MaxPrice = &price
			}

			result, err := api.SearchStations(c.Context, params)
			if err != nil {
				return err
			}
			return output(c, result, func(w io.Writer) {
				printStations(w, result.Stations)
				fmt.Fprintf(w, "\n%d of %d stations (page %d)\n", len(result.Stations), result.Total, result.Page)
			})
		},
	}
}

func nearbyCommand() *cli.Command {
	return &cli.Command{
		Name:  "nearby",
		Usage: "stations near a position",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "lat", Required: true},
			&cli.Float64Flag{Name: "lng", Required: true},
			&cli.Float64Flag{Name: "radius", Value: 25},
		},
		Action: func(c *cli.Context) error {
			api, err := apiClient(c)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(c.Context, 5*time.Second)
			defer cancel()
			state := geo.Current(ctx, geo.StaticLocator{Latitude: c.Float64("lat"), Longitude: c.Float64("lng")})
			if state.Error != "" {
				return errors.New(state.Error)
			}
			if !geo.ValidCoordinates(*state.Latitude, *state.Longitude) {
				return errors.New("lat must be within ±90 and lng within ±180")
			}

			list, err := api.NearbyStations(c.Context, *state.Latitude, *state.Longitude, c.Float64("radius"))
			if err != nil {
				return err
			}
			return output(c, list, func(w io.Writer) { printStations(w, list) })
		},
	}
}

func bookCommand() *cli.Command {
	return &cli.Command{
		Name:      "book",
		Usage:     "book a connector",
		ArgsUsage: "<station-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "connector", Required: true},
			&cli.TimestampFlag{Name: "start", Layout: time.RFC3339, Required: true},
			&cli.IntFlag{Name: "duration", Value: 60, Usage: "minutes"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("book needs exactly one station id")
			}
			api, err := apiClient(c)
			if err != nil {
				return err
			}
			req := client.NewBookingRequest(c.Args().First(), c.String("connector"), *c.Timestamp("start"), c.Int("duration"))
			booking, err := api.CreateBooking(c.Context, req)
			if err != nil {
				return err
			}
			return output(c, booking, func(w io.Writer) {
				fmt.Fprintf(w, "Booking %s is %s, estimated $%.2f\n", booking.ID, booking.Status, booking.TotalCost)
			})
		},
	}
}

func apiClient(c *cli.Context) (*client.Client, error) {
	path := c.String("session")
	if path == "" {
		var err error
		if path, err = client.DefaultStoragePath(); err != nil {
			return nil, err
		}
	}
	return client.New(c.String("api"), client.NewFileStorage(path)), nil
}

// output prints v as JSON with --json, else calls text.
func output(c *cli.Context, v any, text func(io.Writer)) error {
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(c.App.Writer)
	return nil
}

func printStations(w io.Writer, list []models.ChargingStation) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tFREE\tRATING\tDISTANCE")
	for _, s := range list {
		distance := "-"
		if s.Distance != nil {
			distance = geo.FormatDistance(*s.Distance) + " mi"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%.1f\t%s\n",
			s.ID, s.Name, s.Availability.Status,
			s.Availability.AvailableConnectors, s.Availability.TotalConnectors,
			s.Rating, distance)
	}
	tw.Flush()
}

func printStation(w io.Writer, s models.ChargingStation) {
	fmt.Fprintf(w, "%s\n%s\n", s.Name, s.Address)
	fmt.Fprintf(w, "%s, %s, %d/%d connectors free\n", s.ChargingSpeed, s.Availability.Status,
		s.Availability.AvailableConnectors, s.Availability.TotalConnectors)
	for _, conn := range s.ConnectorTypes {
		fmt.Fprintf(w, "  %-8s %5.0f kW  %d/%d\n", conn.Type, conn.MaxPower, conn.Available, conn.Count)
	}
}

func printBookings(w io.Writer, list client.BookingList) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATION\tSTART\tMIN\tSTATUS\tCOST")
	for _, b := range list.Bookings {
		station := b.StationID
		if b.Station != nil {
			station = b.Station.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%.2f\n",
			b.ID, station, b.StartTime.Local().Format("Jan 2 15:04"), b.Duration, b.Status, b.TotalCost)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d total\n", list.Total)
}
