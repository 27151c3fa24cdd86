/*
Package domain contains the core domain models of the Ludics dialogue engine.

It defines the entities every other package exchanges: the addressed positions of an
interaction tree, the polarized acts owned by a design, and the derived structures
computed from designs (interactions, disputes, views, plays and strategies). This
package is kept pure and free of I/O or persistence concerns.

# Key Entities

  - Locus: An addressable position ("0.1.2") scoped to one dialogue.
  - Act: One polarized, located move (PROPER content move or terminal DAIMON).
  - Design: One participant's owned, ordered chronicle of acts rooted at a locus.
  - Interaction: The result of stepping a positive design against a negative one.
  - Dispute: One maximal interaction trace against an orthogonal counter-design.
  - Strategy: A set of plays for one player, with innocence diagnostics.
*/
package domain
