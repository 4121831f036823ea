package dataset

import "github.com/go-gota/gota/series"

// Column names of the raw and derived tables
const (
	ColStore                     = "Store"
	ColDayOfWeek                 = "DayOfWeek"
	ColDate                      = "Date"
	ColSales                     = "Sales"
	ColCustomers                 = "Customers"
	ColOpen                      = "Open"
	ColPromo                     = "Promo"
	ColStateHoliday              = "StateHoliday"
	ColSchoolHoliday             = "SchoolHoliday"
	ColStoreType                 = "StoreType"
	ColAssortment                = "Assortment"
	ColCompetitionDistance       = "CompetitionDistance"
	ColCompetitionOpenSinceMonth = "CompetitionOpenSinceMonth"
	ColCompetitionOpenSinceYear  = "CompetitionOpenSinceYear"
	ColPromo2                    = "Promo2"
	ColPromo2SinceWeek           = "Promo2SinceWeek"
	ColPromo2SinceYear           = "Promo2SinceYear"
	ColPromoInterval             = "PromoInterval"
	ColYear                      = "Year"
	ColMonth                     = "Month"
	ColDay                       = "Day"
	ColWeekOfYear                = "WeekOfYear"
)

// DateLayout is the layout of the Date column
const DateLayout = "2006-01-02"

// Schema maps each expected column of a raw file to its load type
type Schema map[string]series.Type

// TrainSchema describes train.csv
var TrainSchema = Schema{
	ColStore:         series.Int,
	ColDayOfWeek:     series.Int,
	ColDate:          series.String,
	ColSales:         series.Float,
	ColCustomers:     series.Int,
	ColOpen:          series.Int,
	ColPromo:         series.Int,
	ColStateHoliday:  series.String,
	ColSchoolHoliday: series.Int,
}

// StoreSchema describes store.csv
var StoreSchema = Schema{
	ColStore:                     series.Int,
	ColStoreType:                 series.String,
	ColAssortment:                series.String,
	ColCompetitionDistance:       series.Float,
	ColCompetitionOpenSinceMonth: series.Float,
	ColCompetitionOpenSinceYear:  series.Float,
	ColPromo2:                    series.Int,
	ColPromo2SinceWeek:           series.Float,
	ColPromo2SinceYear:           series.Float,
	ColPromoInterval:             series.String,
}

var (
	// DroppedColumns are removed right after the merge
	DroppedColumns = []string{ColCustomers, ColPromoInterval}

	// MedianFilled columns get the median of their present values
	MedianFilled = []string{ColCompetitionDistance}

	// ZeroFilled columns get 0 where missing
	ZeroFilled = []string{
		ColCompetitionOpenSinceMonth,
		ColCompetitionOpenSinceYear,
		ColPromo2SinceWeek,
		ColPromo2SinceYear,
	}

	// EncodedColumns are one-hot encoded with the first category dropped
	EncodedColumns = []string{ColStoreType, ColAssortment, ColStateHoliday}

	// ScaledColumns are standardized to zero mean and unit variance
	ScaledColumns = []string{
		ColCompetitionDistance,
		ColCompetitionOpenSinceMonth,
		ColCompetitionOpenSinceYear,
		ColPromo2SinceWeek,
		ColPromo2SinceYear,
		ColYear,
		ColMonth,
		ColDay,
		ColWeekOfYear,
	}

	// NonFeatureColumns are kept in the table but excluded from X
	NonFeatureColumns = []string{ColSales, ColDate}
)
