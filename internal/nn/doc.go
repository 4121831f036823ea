// Package nn is a small dense feed-forward network for tabular
// regression, built on gonum matrices.
//
// A network is a stack of blocks, each Dense(+activation) followed by
// BatchNorm and Dropout, closed by a single linear output unit. Training
// minimizes mean squared error with mini-batches and tracks mean absolute
// error as a metric, evaluating a holdout set after every epoch.
package nn
