// Package dataprocessing implements the spreadsheet ingestion pipeline:
// classifying report files by name, extracting tabular data from
// loosely-structured worksheets, aggregating validated rows into
// time-indexed accumulators, and deriving the quality statistics
// (KPIs, trends, Pareto analysis) served to consumers.
//
// The hand-authored reports have no fixed schema. Header rows float at
// unknown positions, column names drift between files and months, and
// cells contain merged ranges, Excel error sentinels, or dates encoded
// as numeric serials. Extraction therefore recovers the logical schema
// heuristically and every derived number keeps row-level provenance.
package dataprocessing
