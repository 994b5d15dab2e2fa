package models

// Query identifies one cell of the ad-exchange auction space: a user
// visit to a publisher site from a given device, requesting a given ad
// format, with the user classified into a segment set (empty when the
// classification service could not recover the user's segments).
type Query struct {
	Publisher string     `json:"publisher"`
	Segments  SegmentSet `json:"segments"`
	Device    Device     `json:"device"`
	AdType    AdType     `json:"ad_type"`
}

var devices = []Device{DevicePC, DeviceMobile}
var adTypes = []AdType{AdTypeText, AdTypeVideo}

// QuerySpace enumerates every query the exchange can issue for the
// given publisher catalog: each publisher crossed with every
// single-segment set, every device and every ad type, plus the
// empty-segment ("unknown user") combinations.
func QuerySpace(publishers []string) []Query {
	var queries []Query
	for _, pub := range publishers {
		for _, seg := range AllSegments {
			for _, dev := range devices {
				for _, at := range adTypes {
					queries = append(queries, Query{
						Publisher: pub,
						Segments:  NewSegmentSet(seg),
						Device:    dev,
						AdType:    at,
					})
				}
			}
		}
		for _, dev := range devices {
			for _, at := range adTypes {
				queries = append(queries, Query{
					Publisher: pub,
					Segments:  NewSegmentSet(),
					Device:    dev,
					AdType:    at,
				})
			}
		}
	}
	return queries
}

// CampaignQueries enumerates the queries relevant to a campaign's
// target segment: its full segment set crossed with every publisher,
// device and ad type.
func CampaignQueries(publishers []string, target SegmentSet) []Query {
	queries := make([]Query, 0, len(publishers)*len(devices)*len(adTypes))
	for _, pub := range publishers {
		for _, dev := range devices {
			for _, at := range adTypes {
				queries = append(queries, Query{
					Publisher: pub,
					Segments:  target.Clone(),
					Device:    dev,
					AdType:    at,
				})
			}
		}
	}
	return queries
}
