/*
Pipeline implements the cycle-stepped strategy executor.

# Module
  - demux: copies every market word to the book updater and both strategies
  - book updater & book cache: top of book per instrument
  - configuration store: host messages, per-instrument configuration and software triggers
  - tick-to-cancel & tick-to-trade: one trade in flight each, lookups on the config and book tables
  - tcp consumer: TCP reply session counting
  - trigger arbiter: round-robin merge of the four trigger producers
  - notification mux: fixed priority merge of the host reports

# Source
 1. market words from the feed handler
 2. host words from the software link
 3. TCP reply words from the order entry engine

# Produce
  - trigger commands to the order entry engine
  - notification words to the host
  - audit records to an optional event queue
*/
package pipeline
