/*
The mirror package implements the snapshot replication loop between two
btrfs volumes.

Snapshots are directories named after the day they were taken. Each pass
lists both volumes, picks the latest snapshot that exists at the source but
not at the destination, and rebuilds it at the destination in five steps:

1) Clone the nearest existing destination snapshot into a writable
   subvolume with the target's name.
2) Sync the filesystem so the clone is durable.
3) Replay likely file moves between the two source snapshots as reflinks
   inside the clone, so moved contents keep their extent sharing.
4) rsync the source snapshot over the clone in-place.
5) Flip the clone to read-only, and sync again.

Cloning the nearest existing date maximizes the blocks the new snapshot
already shares with its neighbors. "Nearest" is asymmetric: snapshots
mostly accumulate growth, so at the same distance a later snapshot is a
better guess than an earlier one.

The destination is rebuilt through ordinary file operations (snapshot,
reflink, rsync) rather than a send/receive channel, so a corrupted source
filesystem cannot corrupt the destination through shared internals.
*/
package mirror
