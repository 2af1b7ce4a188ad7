package enums

type ListingSort string

const (
	ListingSortNewest    ListingSort = "newest"
	ListingSortOldest    ListingSort = "oldest"
	ListingSortPriceAsc  ListingSort = "price_asc"
	ListingSortPriceDesc ListingSort = "price_desc"
)

func ParseListingSort(value string) ListingSort {
	switch ListingSort(value) {
	case ListingSortOldest, ListingSortPriceAsc, ListingSortPriceDesc:
		return ListingSort(value)
	default:
		return ListingSortNewest
	}
}
