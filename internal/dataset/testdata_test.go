package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const trainCSV = `Store,DayOfWeek,Date,Sales,Customers,Open,Promo,StateHoliday,SchoolHoliday
1,5,2015-07-31,5263,555,1,1,0,1
2,5,2015-07-31,6064,625,1,1,0,1
3,5,2015-07-31,8314,821,1,1,0,1
1,4,2015-07-30,5020,546,1,1,0,1
2,4,2015-07-30,5567,654,1,1,a,1
3,4,2015-07-30,0,0,0,0,b,0
1,3,2015-01-01,4782,523,1,0,0,1
2,3,2014-12-31,5000,600,1,0,c,0
4,2,2014-06-03,7000,700,1,1,0,0
`

const storeCSV = `Store,StoreType,Assortment,CompetitionDistance,CompetitionOpenSinceMonth,CompetitionOpenSinceYear,Promo2,Promo2SinceWeek,Promo2SinceYear,PromoInterval
1,c,a,1270,9,2008,0,,,
2,a,a,570,11,2007,1,13,2010,"Jan,Apr,Jul,Oct"
3,a,c,,,,1,14,2011,"Jan,Apr,Jul,Oct"
4,d,c,620,9,2009,0,,,
`

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func loadFixtures(t *testing.T) (*Table, *Table) {
	t.Helper()
	train, err := ReadCSV(strings.NewReader(trainCSV), TrainSchema)
	require.NoError(t, err)
	store, err := ReadCSV(strings.NewReader(storeCSV), StoreSchema)
	require.NoError(t, err)
	return train, store
}
