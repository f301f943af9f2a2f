/*
Package cfddns keeps a single Cloudflare DNS record pointed at the current
public IPv4 address of the host it runs on.

A [Resolver] discovers the public address,
a [Provider] reads and writes the managed record,
an [Updater] performs one compare-and-update cycle,
and a [Scheduler] repeats cycles on a fixed interval until the first cycle
failure or an external shutdown.
*/
package cfddns
