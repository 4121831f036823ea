// Package dataset turns the two raw sales tables into a model-ready
// feature matrix.
//
// The flow is:
//
//	Fetcher.Ensure      download train.csv / store.csv when absent
//	LoadCSV             typed load with missing-value detection (gota)
//	Pipeline.Run        merge, drop, calendar features, impute,
//	                    one-hot encode, standardize
//	Features            split the table into X (float matrix) and y (Sales)
//	TrainTestSplit      seeded 80/20 shuffle split
//
// Every stage is deterministic for a given input and seed.
package dataset
