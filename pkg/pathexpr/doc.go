/*
Package pathexpr evaluates path expressions over message bodies and validates
bodies against schemas.

Bodies are parsed once into an immutable Document (JSON, XML or plain text).
Reads never expose the underlying tree and writes return a new Document, so a
Document can be shared freely between guards, actions and recorders.

# Path Syntax

  - "*": the whole raw document.
  - "/a/b/0": slash path. A numeric segment indexes an array when its parent
    is an array and is an object key otherwise, so "/codes/200" reads
    {"codes":{"200":"ok"}}. On XML documents the expression is handed to
    XPath unchanged.
  - ".a.b[0]": jq expression on JSON documents.
  - On XML documents every expression is XPath, including relative ones such
    as "./status" or ".//status".

# Case Normalization

AssertMatch lowercases both the raw document and the expected value before
comparing. Object keys and element names are lowercased as well, so a path
that spells a key with capitals will not resolve under AssertMatch even if
ReadValue finds it.
*/
package pathexpr
