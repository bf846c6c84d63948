package lightbox

// AddressSearchResponse is the body of /addresses/search. Only the fields the
// geocoder reads are mapped.
type AddressSearchResponse struct {
	Addresses []Address `json:"addresses"`
}

// Address is a single address match. Identifiers and labels are left
// unmapped so their shape never affects classification.
type Address struct {
	Location AddressLocation `json:"location"`
	Metadata AddressMetadata `json:"$metadata"`
}

// AddressLocation holds the match geometry.
type AddressLocation struct {
	RepresentativePoint struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"representativePoint"`
}

// AddressMetadata holds match quality information.
type AddressMetadata struct {
	Geocode struct {
		Confidence struct {
			Score float64 `json:"score"`
		} `json:"confidence"`
		PrecisionCode string `json:"precisionCode"`
	} `json:"geocode"`
}

// AdjacentParcelsResponse is the body of /parcels/_adjacent.
type AdjacentParcelsResponse struct {
	Parcels []Parcel `json:"parcels"`
}

// Parcel is the subset of a parcel record needed to draw it on a map.
type Parcel struct {
	ID        string         `json:"id"`
	ParcelAPN string         `json:"parcelApn"`
	Location  ParcelLocation `json:"location"`
	Owner     ParcelOwner    `json:"owner"`
}

// ParcelLocation holds the parcel address and boundary.
type ParcelLocation struct {
	StreetAddress string `json:"streetAddress"`
	Geometry      struct {
		WKT string `json:"wkt"`
	} `json:"geometry"`
}

// ParcelOwner lists recorded owners, most significant first.
type ParcelOwner struct {
	Names []OwnerName `json:"names"`
}

// OwnerName is one recorded owner.
type OwnerName struct {
	FullName string `json:"fullName"`
}
