// Package pagination walks cursor-paginated Junction collections.
//
// The API returns collections as pages of items plus a link to the next
// page. Iterator follows those links lazily as a small state machine:
//
//	fetching -> yielding -> fetching ... -> exhausted
//
// A page with a nil next link or no items ends the walk. Each page fetch is
// an independent call with its own context; nothing is held between pages.
//
// Example usage:
//
//	it, err := client.SearchPlaces(junction.PlaceQuery{NameLike: "London"})
//	if err != nil {
//		return err
//	}
//	for place, err := range it.All(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(place.Name)
//	}
//
// FetchAll fetches a known set of keys (place or booking IDs) with a
// bounded worker pool.
package pagination
