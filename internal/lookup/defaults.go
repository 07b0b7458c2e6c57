package lookup

// Collection keys in the document store.
const (
	EventTypesCollection = "event_types"
	SuburbsCollection    = "suburbs"
)

// DefaultEventTypes is the fixed event category list. Casing is preserved
// as displayed in the product.
var DefaultEventTypes = []string{
	"Outdoor",
	"Mindfulness",
	"meditation",
	"creative",
	"Social",
}

// DefaultSuburbs is the fixed Melbourne suburb list.
var DefaultSuburbs = []string{
	"Abbotsford",
	"Aberfeldie",
	"Airport West",
	"Albert Park",
	"Alphington",
	"Altona",
	"Altona Meadows",
	"Armadale",
	"Ascot Vale",
	"Ashburton",
	"Ashwood",
	"Aspendale",
	"Auburn",
	"Avondale Heights",
	"Balaclava",
	"Balwyn",
	"Balwyn North",
	"Bangholme",
	"Bayswater",
	"Beaumaris",
	"Bellfield",
	"Bentleigh",
	"Bentleigh East",
	"Blackburn",
	"Blackburn North",
	"Blackburn South",
	"Box Hill",
	"Braybrook",
	"Brighton",
	"Brighton East",
	"Broadmeadows",
	"Brunswick",
	"Brunswick East",
	"Brunswick West",
	"Bundoora",
	"Burwood",
	"Camberwell",
	"Campbellfield",
	"Canterbury",
	"Carlton",
	"Carlton North",
	"Carnegie",
	"Caroline Springs",
	"Caulfield",
	"Chadstone",
	"Cheltenham",
	"Coburg",
	"Coburg North",
	"Collingwood",
	"Cremorne",
	"Croydon",
	"Dandenong",
	"Doncaster",
	"Doncaster East",
	"Doreen",
	"Elsternwick",
	"Elwood",
	"Epping",
	"Essendon",
	"Fairfield",
	"Fawkner",
	"Ferntree Gully",
	"Fitzroy",
	"Fitzroy North",
	"Footscray",
	"Forest Hill",
	"Frankston",
	"Gardenvale",
	"Glen Iris",
	"Glen Waverley",
	"Greensborough",
	"Hampton",
	"Hawthorn",
	"Hawthorn East",
	"Heidelberg",
	"Heatherton",
	"Hoppers Crossing",
	"Ivanhoe",
	"Keysborough",
	"Kew",
	"Kew East",
	"Kilsyth",
	"Laverton",
	"Lilydale",
	"Malvern",
	"Malvern East",
	"Maribyrnong",
	"Mordialloc",
	"Mount Waverley",
	"Mulgrave",
	"Newport",
	"Northcote",
	"Nunawading",
	"Oakleigh",
	"Oakleigh East",
	"Parkville",
	"Pascoe Vale",
	"Port Melbourne",
	"Preston",
	"Reservoir",
	"Richmond",
	"Ripponlea",
	"Rowville",
	"Sandringham",
	"Scoresby",
	"Southbank",
	"South Yarra",
	"Springvale",
	"St Kilda",
	"St Kilda East",
	"Sunbury",
	"Sunshine",
	"Surrey Hills",
	"Templestowe",
	"Thomastown",
	"Toorak",
	"Tottenham",
	"Vermont",
	"Warrandyte",
	"Watsonia",
	"Werribee",
	"Wheelers Hill",
	"Williamstown",
	"Yarraville",
	"Other",
}
