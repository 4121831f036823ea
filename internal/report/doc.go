// Package report turns a finished training run into diagnostics: learning
// curves, prediction scatter plots, feature importance, target
// histograms, holdout metrics and a model summary.
//
// Build is pure and returns plain data; RenderChart draws any chart of a
// report as PNG and WriteWorkbook exports it as an Excel workbook.
package report
