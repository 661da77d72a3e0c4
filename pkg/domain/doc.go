/*
Package domain contains the core types of the Sequent engine.

It defines the activity model (activities, objectives, control modes,
sequencing rules, rollup configuration), the manifest input structure consumed
from the package layer, navigation request kinds, session state, and the
structured results returned by the public operations.

Types here carry no behavior beyond parsing and small helpers; the sequencing
logic itself lives in the runtime.
*/
package domain
