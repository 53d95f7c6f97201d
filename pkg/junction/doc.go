// Package junction is a Go client for the Junction travel content API.
//
// A Client turns method calls into authenticated HTTP requests, retries
// transient failures with exponential backoff, and decodes responses into
// typed results or classified errors.
//
// Basic usage:
//
//	client, err := junction.New(junction.DefaultConfig()) // reads JUNCTION_API_KEY
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	places, err := client.SearchPlaces(junction.PlaceQuery{NameLike: "Berlin", Type: junction.PlaceTypeCity})
//	if err != nil {
//		log.Fatal(err)
//	}
//	for place, err := range places.All(ctx) {
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(place.ID, place.Name)
//	}
//
// Searches return iterators over offers. Pages whose results are still being
// collected are polled until Config.PendingTimeout:
//
//	offers, err := client.SearchTrains(ctx, junction.TrainSearch{
//		Origin:              origin,
//		Destination:         destination,
//		DepartureAfter:      time.Now().Add(7 * 24 * time.Hour),
//		PassengerBirthDates: []junction.Date{{Year: 1990, Month: time.May, Day: 4}},
//	})
//
// # Errors
//
// Every error returned by a Client method is one of the types in errors.go
// and matches a sentinel with errors.Is:
//
//	switch {
//	case errors.Is(err, junction.ErrNotFound):
//	case errors.Is(err, junction.ErrRateLimited):
//		wait, _ := junction.RetryAfter(err)
//	case errors.Is(err, junction.ErrCancelled):
//	}
//
// Network errors, 429 and 5xx responses are retried before they reach the
// caller; the error returned is the last one observed.
//
// # Optional features
//
//   - Config.Redis enables a shared response cache with ETag revalidation
//     and shares the server rate-limit window between processes.
//   - Config.RateLimit paces requests client-side.
//   - Config.Registerer exports Prometheus metrics.
package junction
